package acer

import (
	"syscall"

	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
)

var (
	ErrBadLength       = errors.New("unexpected response length")
	ErrBadShape        = errors.New("unexpected response type")
	ErrUnsupported     = errors.New("operation not supported")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNoDevice        = errors.New("no such device")
)

// Errno maps an operation error onto the code reported to attribute
// readers and writers. Malformed responses and EC failures are I/O errors.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrInvalidState):
		return syscall.EINVAL
	case errors.Is(err, ErrUnsupported):
		return syscall.EOPNOTSUPP
	case errors.Is(err, ErrNoDevice),
		errors.Is(err, wmi.ErrCallFailed),
		errors.Is(err, wmi.ErrNoResult):
		return syscall.ENODEV
	default:
		return syscall.EIO
	}
}
