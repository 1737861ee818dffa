package acer

import (
	"context"
	"encoding/binary"
	"strings"

	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	methodGetBatteryControl = 20
	methodSetBatteryControl = 21

	batteryNumber = 1

	batteryStatusLength = 8
	batterySetLength    = 4
)

// BatteryMode selects a battery function; the values double as the bits
// of the firmware's function mask.
type BatteryMode byte

const (
	HealthMode      BatteryMode = 1
	CalibrationMode BatteryMode = 2
)

func (m BatteryMode) String() string {
	switch m {
	case HealthMode:
		return "health mode"
	case CalibrationMode:
		return "calibration mode"
	default:
		return "unknown mode"
	}
}

// BatteryStatus is the availability and activity of both battery modes.
type BatteryStatus struct {
	Health      TriState
	Calibration TriState
}

// decodeBatteryStatus reads the 8 byte status object
// {function list, return[2], function status[5]}. A mode's status byte is
// only meaningful when its bit is set in the function list.
func decodeBatteryStatus(data []byte) BatteryStatus {
	functions := BatteryMode(data[0])
	status := data[3:8]

	s := BatteryStatus{Health: Unsupported, Calibration: Unsupported}
	if functions&HealthMode != 0 {
		s.Health = boolState(status[0] > 0)
	}
	if functions&CalibrationMode != 0 {
		s.Calibration = boolState(status[1] > 0)
	}
	return s
}

// BatteryController speaks the battery health control protocol and keeps
// the last successfully queried status. Callers serialise access.
type BatteryController struct {
	transport wmi.Transport
	status    BatteryStatus
	log       *logrus.Entry
}

func NewBatteryController(transport wmi.Transport) *BatteryController {
	return &BatteryController{
		transport: transport,
		status:    BatteryStatus{Health: Unsupported, Calibration: Unsupported},
		log:       logrus.WithField("component", "battery"),
	}
}

// Status returns the mirrored status
func (b *BatteryController) Status() BatteryStatus {
	return b.status
}

// Query asks the firmware for the state of both modes and refreshes the
// mirror. The mirror is left alone on failure.
func (b *BatteryController) Query(ctx context.Context) (BatteryStatus, error) {
	request := []byte{batteryNumber, 1, 0, 0}

	res, err := b.transport.Invoke(ctx, wmi.BatteryGUID, methodGetBatteryControl, request)
	if err != nil {
		return b.status, errors.Wrap(err, "getting battery health status")
	}
	if res.Kind != wmi.Buffer {
		return b.status, errors.Wrapf(ErrBadShape, "battery status returned %s", res.Kind)
	}
	if len(res.Data) != batteryStatusLength {
		return b.status, errors.Wrapf(ErrBadLength, "battery status returned %d bytes", len(res.Data))
	}

	status := decodeBatteryStatus(res.Data)
	b.logTransitions(b.status, status)
	b.status = status

	return status, nil
}

// Set switches a mode on or off. The mirror is not touched; the firmware
// may not apply the request as given, so callers query afterwards.
func (b *BatteryController) Set(ctx context.Context, mode BatteryMode, enabled bool) error {
	if mode != HealthMode && mode != CalibrationMode {
		return errors.Wrapf(ErrInvalidArgument, "battery mode %d", mode)
	}

	request := []byte{batteryNumber, byte(mode), 0, 0, 0, 0, 0, 0}
	if enabled {
		request[2] = 1
	}

	res, err := b.transport.Invoke(ctx, wmi.BatteryGUID, methodSetBatteryControl, request)
	if err != nil {
		return errors.Wrapf(err, "setting battery %s", mode)
	}
	if res.Kind != wmi.Buffer {
		return errors.Wrapf(ErrBadShape, "battery set returned %s", res.Kind)
	}
	if len(res.Data) != batterySetLength {
		return errors.Wrapf(ErrBadLength, "battery set returned %d bytes", len(res.Data))
	}

	b.log.Debugf("set %s to %t, firmware returned 0x%x", mode, enabled, binary.LittleEndian.Uint16(res.Data[:2]))

	return nil
}

func (b *BatteryController) logTransitions(old, now BatteryStatus) {
	if now.Calibration != old.Calibration {
		b.log.Infof("%s calibration mode", transition(now.Calibration))
	}
	if now.Health != old.Health {
		b.log.Infof("%s health mode", transition(now.Health))
	}
}

func transition(t TriState) string {
	switch t {
	case On:
		return "enabled"
	case Off:
		return "disabled"
	default:
		return "lost"
	}
}

// logModes prints a summary line such as "available modes: health mode,
// calibration mode".
func logModes(log *logrus.Entry, prefix string, printIfEmpty, health, calibration bool) {
	if !health && !calibration && !printIfEmpty {
		return
	}

	var modes []string
	if health {
		modes = append(modes, HealthMode.String())
	}
	if calibration {
		modes = append(modes, CalibrationMode.String())
	}
	log.Infof("%s modes: %s", prefix, strings.Join(modes, ", "))
}
