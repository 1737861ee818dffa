package quirks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownModel(t *testing.T) {
	caps := NewRegistry().Resolve(ModelKey{Vendor: "Acer", Product: "Swift SFG14-73"})

	assert.True(t, caps.SystemControlMode)
	assert.True(t, caps.UsbChargeMode)
}

func TestResolveUnknownModel(t *testing.T) {
	r := NewRegistry()

	for _, key := range []ModelKey{
		{},
		{Vendor: "Acer", Product: "Aspire A515-54"},
		{Vendor: "Acer", Product: "Swift SFG14-73 "},
		{Vendor: "acer", Product: "Swift SFG14-73"},
	} {
		assert.Equal(t, Capabilities{}, r.Resolve(key), key.String())
	}
}

func TestExtraEntriesOverride(t *testing.T) {
	key := ModelKey{Vendor: "Acer", Product: "Swift SFG14-73"}
	r := NewRegistry(Entry{
		Ident:        "no usb",
		Key:          key,
		Capabilities: Capabilities{SystemControlMode: true},
	})

	e, found := r.Lookup(key)
	require.True(t, found)
	assert.Equal(t, "no usb", e.Ident)
	assert.Equal(t, Capabilities{SystemControlMode: true}, r.Resolve(key))
}

func TestReadDMI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sys_vendor"), []byte("Acer\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product_name"), []byte("Swift  SFG14-73\n"), 0o644))

	key, err := ReadDMI(dir)
	require.NoError(t, err)
	assert.Equal(t, ModelKey{Vendor: "Acer", Product: "Swift SFG14-73"}, key)
}

func TestReadDMIWindows1252(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sys_vendor"), []byte("Acer\xae\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product_name"), []byte("Nitro\n"), 0o644))

	key, err := ReadDMI(dir)
	require.NoError(t, err)
	assert.Equal(t, "Acer®", key.Vendor)
}

func TestReadDMIMissing(t *testing.T) {
	_, err := ReadDMI(t.TempDir())
	assert.Error(t, err)
}
