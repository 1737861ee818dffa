package wmi

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Interface GUIDs exposed by Acer firmware
const (
	// BatteryGUID carries the battery health and calibration methods (20, 21)
	BatteryGUID = "79772EC5-04B1-4BFD-843C-61E7F77B6CC9"
	// ApgeActionGUID carries the generic get/set functions (2, 1)
	ApgeActionGUID = "61EF69EA-865C-4BC3-A502-A0DEBA0CB531"
)

var (
	ErrCallFailed = errors.New("wmi call failed")
	ErrNoResult   = errors.New("wmi call produced no result")
)

// Kind tells which shape of object a method returned.
type Kind int

const (
	Buffer Kind = iota
	Integer
)

func (k Kind) String() string {
	switch k {
	case Buffer:
		return "buffer"
	case Integer:
		return "integer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Response is the result object of a method evaluation. Data is set for
// Buffer results, Value for Integer results.
type Response struct {
	Kind  Kind
	Data  []byte
	Value uint64
}

// Len returns the byte length of the result object
func (r Response) Len() int {
	if r.Kind == Integer {
		return 8
	}
	return len(r.Data)
}

// Transport evaluates vendor WMI methods. Implementations forward the
// request bytes verbatim and only report low-level call failures.
type Transport interface {
	// Invoke evaluates method on instance 0 of the interface identified by guid
	Invoke(ctx context.Context, guid string, method uint32, request []byte) (Response, error)
	// HasInterface reports whether the firmware exposes guid
	HasInterface(guid string) bool
}
