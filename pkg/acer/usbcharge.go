package acer

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	functionSet = 1
	functionGet = 2

	usbChargeParameter = 0x4

	// A command code is the matching status code plus this offset
	usbCommandOffset = 4

	usbStatusOff  uint64 = 663296
	usbCommandOff        = usbStatusOff + usbCommandOffset

	// Limit enabling USB charging selects
	DefaultUsbChargeLimit = 30
)

// Status codes reported while charging is enabled, by limit percentage
var usbStatusCodes = map[int]uint64{
	10: 659200,
	20: 1314560,
	30: 1969920,
}

func usbCommandCode(limit int) (uint64, bool) {
	code, exists := usbStatusCodes[limit]
	if !exists {
		return 0, false
	}
	return code + usbCommandOffset, true
}

// UsbChargeState is the decoded USB charge status. Limit is 0 when
// charging is off or the code is not recognised.
type UsbChargeState struct {
	Enabled TriState
	Limit   int
}

func (s UsbChargeState) String() string {
	switch s.Enabled {
	case Off:
		return "off"
	case On:
		return fmt.Sprintf("on, limit %d%%", s.Limit)
	default:
		return "unknown"
	}
}

// DecodeUsbCharge maps a status code onto a state. Codes outside the known
// set decode to Unknown.
func DecodeUsbCharge(code uint64) UsbChargeState {
	if code == usbStatusOff {
		return UsbChargeState{Enabled: Off}
	}
	for limit, c := range usbStatusCodes {
		if c == code {
			return UsbChargeState{Enabled: On, Limit: limit}
		}
	}
	return UsbChargeState{Enabled: Unknown}
}

// UsbChargeController drives USB charging while the laptop is off. It
// holds the last known state; callers serialise access.
type UsbChargeController struct {
	transport wmi.Transport
	supported bool
	state     UsbChargeState
	log       *logrus.Entry
}

func NewUsbChargeController(transport wmi.Transport, supported bool) *UsbChargeController {
	return &UsbChargeController{
		transport: transport,
		supported: supported,
		state:     UsbChargeState{Enabled: Unknown},
		log:       logrus.WithField("component", "usb_charge"),
	}
}

func (u *UsbChargeController) Supported() bool {
	return u.supported
}

// State returns the mirrored state
func (u *UsbChargeController) State() UsbChargeState {
	return u.state
}

// QueryStatus reads the status code from the firmware and refreshes the
// mirror.
func (u *UsbChargeController) QueryStatus(ctx context.Context) (UsbChargeState, error) {
	if !u.supported {
		return u.state, ErrUnsupported
	}

	code, err := u.call(ctx, functionGet, usbChargeParameter)
	if err != nil {
		return u.state, errors.Wrap(err, "getting usb charging status")
	}

	u.state = DecodeUsbCharge(code)
	u.log.Debugf("usb charging get status: %d (%s)", code, u.state)

	return u.state, nil
}

// SetEnabled turns USB charging off, or on with the default limit.
func (u *UsbChargeController) SetEnabled(ctx context.Context, on bool) error {
	if !u.supported {
		return ErrUnsupported
	}

	command, state := usbCommandOff, UsbChargeState{Enabled: Off}
	if on {
		command, _ = usbCommandCode(DefaultUsbChargeLimit)
		state = UsbChargeState{Enabled: On, Limit: DefaultUsbChargeLimit}
	}

	result, err := u.call(ctx, functionSet, command)
	if err != nil {
		return errors.Wrap(err, "setting usb charging status")
	}

	u.log.Debugf("usb charging set status: %d", result)
	u.state = state

	return nil
}

// SetLimit changes the battery level at which USB charging stops. Charging
// must not be off.
func (u *UsbChargeController) SetLimit(ctx context.Context, limit int) error {
	if !u.supported {
		return ErrUnsupported
	}
	if u.state.Enabled == Off {
		return errors.Wrap(ErrInvalidState, "cannot set a limit while usb charging is off")
	}

	command, valid := usbCommandCode(limit)
	if !valid {
		return errors.Wrapf(ErrInvalidArgument, "usb charging limit %d", limit)
	}

	result, err := u.call(ctx, functionSet, command)
	if err != nil {
		return errors.Wrap(err, "setting usb charging limit")
	}

	u.log.Debugf("usb charging set limit: %d", result)
	u.state = UsbChargeState{Enabled: On, Limit: limit}

	return nil
}

// call evaluates one of the ApgeAction functions with a single u64
// argument and returns its u64 result.
func (u *UsbChargeController) call(ctx context.Context, function uint32, argument uint64) (uint64, error) {
	request := make([]byte, 8)
	binary.LittleEndian.PutUint64(request, argument)

	res, err := u.transport.Invoke(ctx, wmi.ApgeActionGUID, function, request)
	if err != nil {
		return 0, err
	}

	switch res.Kind {
	case wmi.Integer:
		return res.Value, nil
	case wmi.Buffer:
		switch len(res.Data) {
		case 4:
			return uint64(binary.LittleEndian.Uint32(res.Data)), nil
		case 8:
			return binary.LittleEndian.Uint64(res.Data), nil
		default:
			return 0, errors.Wrapf(ErrBadLength, "function %d returned %d bytes", function, len(res.Data))
		}
	default:
		return 0, errors.Wrapf(ErrBadShape, "function %d returned %s", function, res.Kind)
	}
}
