// Package acertest provides in-memory firmware and EC fakes that follow
// the Acer WMI protocols, for tests that need a facade without hardware.
package acertest

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
)

const (
	methodGetBattery = 20
	methodSetBattery = 21
	functionSet      = 1
	functionGet      = 2

	usbCommandOffset = 4

	// UsbOff is the USB charge status code for "charging off"
	UsbOff uint64 = 663296
)

var ErrRegister = errors.New("ec timeout")

type Call struct {
	GUID    string
	Method  uint32
	Request []byte
}

// Firmware answers battery and ApgeAction calls the way the real firmware
// does and records every call. Fields may be changed through Update.
type Firmware struct {
	mu sync.Mutex

	Present map[string]bool

	// Battery function list and status bytes
	Functions   byte
	Health      byte
	Calibration byte

	// Current USB charge status code
	UsbCode uint64

	// Override replaces the protocol simulation when set
	Override func(c Call) (wmi.Response, error)

	calls []Call
}

// NewFirmware returns firmware with both interfaces present, both battery
// modes available and off, and USB charging off.
func NewFirmware() *Firmware {
	return &Firmware{
		Present:   map[string]bool{wmi.BatteryGUID: true, wmi.ApgeActionGUID: true},
		Functions: 3,
		UsbCode:   UsbOff,
	}
}

// Update runs fn with the firmware locked
func (f *Firmware) Update(fn func(f *Firmware)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *Firmware) HasInterface(guid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Present[guid]
}

func (f *Firmware) Invoke(ctx context.Context, guid string, method uint32, request []byte) (wmi.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := Call{guid, method, append([]byte(nil), request...)}
	f.calls = append(f.calls, c)

	if f.Override != nil {
		return f.Override(c)
	}

	switch {
	case guid == wmi.BatteryGUID && method == methodGetBattery:
		return wmi.Response{Kind: wmi.Buffer, Data: []byte{f.Functions, 0, 0, f.Health, f.Calibration, 0, 0, 0}}, nil

	case guid == wmi.BatteryGUID && method == methodSetBattery:
		if request[1]&1 != 0 {
			f.Health = request[2]
		}
		if request[1]&2 != 0 {
			f.Calibration = request[2]
		}
		return wmi.Response{Kind: wmi.Buffer, Data: []byte{0, 0, 0, 0}}, nil

	case guid == wmi.ApgeActionGUID && method == functionGet:
		return wmi.Response{Kind: wmi.Integer, Value: f.UsbCode}, nil

	case guid == wmi.ApgeActionGUID && method == functionSet:
		f.UsbCode = binary.LittleEndian.Uint64(request) - usbCommandOffset
		return wmi.Response{Kind: wmi.Integer, Value: 0}, nil
	}

	return wmi.Response{}, wmi.ErrCallFailed
}

// Calls returns the calls received so far
func (f *Firmware) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Reset forgets the recorded calls
func (f *Firmware) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Register is an EC register file kept in memory.
type Register struct {
	mu sync.Mutex

	Values   map[int]byte
	Reads    int
	Writes   int
	ReadErr  error
	WriteErr error
}

func NewRegister(values map[int]byte) *Register {
	if values == nil {
		values = make(map[int]byte)
	}
	return &Register{Values: values}
}

func (r *Register) Read(offset int) (byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Reads++
	if r.ReadErr != nil {
		return 0, r.ReadErr
	}
	return r.Values[offset], nil
}

func (r *Register) Write(offset int, value byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Writes++
	if r.WriteErr != nil {
		return r.WriteErr
	}
	r.Values[offset] = value
	return nil
}
