package ec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebugFSReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "io")
	require.NoError(t, os.WriteFile(path, make([]byte, 256), 0o600))

	d := NewDebugFS(path)

	require.NoError(t, d.Write(0x45, 2))

	v, err := d.Read(0x45)
	require.NoError(t, err)
	assert.Equal(t, byte(2), v)

	v, err = d.Read(0x44)
	require.NoError(t, err)
	assert.Equal(t, byte(0), v)
}

func TestDebugFSMissing(t *testing.T) {
	d := NewDebugFS(filepath.Join(t.TempDir(), "io"))

	_, err := d.Read(0x45)
	var regErr *RegisterError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, "read", regErr.Op)
	assert.Equal(t, 0x45, regErr.Offset)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err = d.Write(0x45, 1)
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, "write", regErr.Op)
}

func TestDebugFSShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "io")
	require.NoError(t, os.WriteFile(path, make([]byte, 16), 0o600))

	_, err := NewDebugFS(path).Read(0x45)
	assert.Error(t, err)
}
