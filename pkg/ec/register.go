package ec

import (
	"fmt"
	"os"
	"sync"
)

// DefaultPath is the EC register window exported by the ec_sys module
// (loaded with write_support=1 for writes).
const DefaultPath = "/sys/kernel/debug/ec/ec0/io"

// Register gives byte access to embedded controller registers.
type Register interface {
	// Read queries a single byte from a register
	Read(offset int) (byte, error)
	// Write stores a single byte to a register
	Write(offset int, value byte) error
}

// RegisterError reports a failed EC access.
type RegisterError struct {
	Op     string
	Offset int
	Err    error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("ec %s 0x%02x: %v", e.Op, e.Offset, e.Err)
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

// DebugFS accesses the EC through the ec_sys debugfs file.
type DebugFS struct {
	path string
	m    sync.Mutex
}

func NewDebugFS(path string) *DebugFS {
	if path == "" {
		path = DefaultPath
	}
	return &DebugFS{path: path}
}

func (d *DebugFS) Read(offset int) (byte, error) {
	d.m.Lock()
	defer d.m.Unlock()

	f, err := os.Open(d.path)
	if err != nil {
		return 0, &RegisterError{"read", offset, err}
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return 0, &RegisterError{"read", offset, err}
	}
	return buf[0], nil
}

func (d *DebugFS) Write(offset int, value byte) error {
	d.m.Lock()
	defer d.m.Unlock()

	f, err := os.OpenFile(d.path, os.O_WRONLY, 0)
	if err != nil {
		return &RegisterError{"write", offset, err}
	}

	if _, err := f.WriteAt([]byte{value}, int64(offset)); err != nil {
		f.Close()
		return &RegisterError{"write", offset, err}
	}
	if err := f.Close(); err != nil {
		return &RegisterError{"write", offset, err}
	}
	return nil
}
