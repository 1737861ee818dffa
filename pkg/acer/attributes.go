package acer

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Attribute names of the exposed control values
const (
	AttrHealthMode        = "health_mode"
	AttrCalibrationMode   = "calibration_mode"
	AttrSystemControlMode = "system_control_mode"
	AttrUsbChargeMode     = "usb_charge_mode"
	AttrUsbChargeLimit    = "usb_charge_limit"
)

// Attributes lists the control values in display order
var Attributes = []string{
	AttrHealthMode,
	AttrCalibrationMode,
	AttrSystemControlMode,
	AttrUsbChargeMode,
	AttrUsbChargeLimit,
}

func isBoolAttribute(name string) bool {
	return name == AttrHealthMode || name == AttrCalibrationMode || name == AttrUsbChargeMode
}

// ParseValue converts user input for an attribute to its integer form.
// Boolean attributes also take y/n, on/off and true/false.
func ParseValue(name, s string) (int, error) {
	s = strings.TrimSpace(s)

	if isBoolAttribute(name) {
		switch strings.ToLower(s) {
		case "1", "y", "yes", "on", "true":
			return 1, nil
		case "0", "n", "no", "off", "false":
			return 0, nil
		}
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidArgument, "%s: %q", name, s)
	}
	return v, nil
}

// Value reads an attribute. Tri-state attributes report -1 when the mode
// is unsupported or unknown; the USB limit reports -1 when charging is off
// or the code was not recognised.
func (f *Facade) Value(ctx context.Context, name string) (int, error) {
	switch name {
	case AttrHealthMode:
		return int(f.BatteryStatus().Health), nil

	case AttrCalibrationMode:
		return int(f.BatteryStatus().Calibration), nil

	case AttrSystemControlMode:
		mode, err := f.SystemControlMode()
		if err != nil {
			return -1, err
		}
		return int(mode), nil

	case AttrUsbChargeMode:
		state, err := f.UsbCharge()
		if err != nil {
			return -1, err
		}
		return int(state.Enabled), nil

	case AttrUsbChargeLimit:
		state, err := f.QueryUsbCharge(ctx)
		if err != nil {
			return -1, err
		}
		if state.Limit == 0 {
			return -1, nil
		}
		return state.Limit, nil

	default:
		return -1, errors.Wrapf(ErrInvalidArgument, "unknown attribute %q", name)
	}
}

// SetValue writes an attribute. Values outside the attribute's domain are
// rejected before the firmware is touched.
func (f *Facade) SetValue(ctx context.Context, name string, value int) error {
	switch name {
	case AttrHealthMode, AttrCalibrationMode:
		if value != 0 && value != 1 {
			return errors.Wrapf(ErrInvalidArgument, "%s: %d", name, value)
		}
		mode := HealthMode
		if name == AttrCalibrationMode {
			mode = CalibrationMode
		}
		_, err := f.SetBatteryMode(ctx, mode, value == 1)
		return err

	case AttrSystemControlMode:
		if value < int(Balanced) || value > int(Performance) {
			return errors.Wrapf(ErrInvalidArgument, "%s: %d", name, value)
		}
		return f.SetSystemControlMode(SystemControlMode(value))

	case AttrUsbChargeMode:
		if value != 0 && value != 1 {
			return errors.Wrapf(ErrInvalidArgument, "%s: %d", name, value)
		}
		return f.SetUsbCharge(ctx, value == 1)

	case AttrUsbChargeLimit:
		return f.SetUsbChargeLimit(ctx, value)

	default:
		return errors.Wrapf(ErrInvalidArgument, "unknown attribute %q", name)
	}
}
