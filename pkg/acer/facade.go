package acer

import (
	"context"
	"sync"
	"time"

	"github.com/karloygard/acer-wmi-ext-go/pkg/ec"
	"github.com/karloygard/acer-wmi-ext-go/pkg/quirks"
	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Handler receives mirror updates after successful operations
type Handler interface {
	// Battery mode status changed or was refreshed
	BatteryStatus(status BatteryStatus)
	// System control mode written or read
	SystemControlMode(mode SystemControlMode)
	// USB charge state changed or was refreshed
	UsbCharge(state UsbChargeState)
}

type nopHandler struct{}

func (nopHandler) BatteryStatus(BatteryStatus)         {}
func (nopHandler) SystemControlMode(SystemControlMode) {}
func (nopHandler) UsbCharge(UsbChargeState)            {}

// Options are applied once during Init. Negative values leave the
// firmware setting unchanged.
type Options struct {
	HealthMode        int
	SystemControlMode int
}

var DefaultOptions = Options{HealthMode: -1, SystemControlMode: -1}

// Facade is the entry point for every mode read and write. Each mirror has
// its own lock, so one read-modify-write sequence per mirror is in flight
// at a time while the others stay available.
type Facade struct {
	caps      quirks.Capabilities
	transport wmi.Transport
	handler   Handler

	batteryMu      sync.Mutex
	battery        *BatteryController
	batteryPresent bool

	usbMu sync.Mutex
	usb   *UsbChargeController

	modeMu sync.Mutex
	mode   *ControlModeController

	// wait maps a computed backoff delay to the time actually waited
	wait func(time.Duration) time.Duration
	log  *logrus.Entry
}

// NewFacade wires the controllers for a machine with the given
// capabilities. handler may be nil.
func NewFacade(transport wmi.Transport, register ec.Register, caps quirks.Capabilities, handler Handler) *Facade {
	if handler == nil {
		handler = nopHandler{}
	}

	return &Facade{
		caps:      caps,
		transport: transport,
		handler:   handler,
		battery:   NewBatteryController(transport),
		usb:       NewUsbChargeController(transport, caps.UsbChargeMode),
		mode:      NewControlModeController(register, caps.SystemControlMode),
		wait:      func(d time.Duration) time.Duration { return d },
		log:       logrus.WithField("component", "acer"),
	}
}

// Capabilities returns the capability record the facade was built with
func (f *Facade) Capabilities() quirks.Capabilities {
	return f.caps
}

// Init discovers the firmware state and applies the start-up options.
// Only battery failures are fatal; the optional subsystems log their
// errors and stay in whatever state they reached.
func (f *Facade) Init(ctx context.Context, opts Options) error {
	if err := f.initBattery(ctx, opts.HealthMode); err != nil {
		return err
	}

	if f.caps.SystemControlMode {
		f.modeMu.Lock()
		if err := f.initControlMode(opts.SystemControlMode); err != nil {
			f.log.Errorf("system control mode: %v", err)
		}
		f.modeMu.Unlock()
	}

	if f.caps.UsbChargeMode {
		f.initUsbCharge(ctx)
	}

	return nil
}

func (f *Facade) initBattery(ctx context.Context, healthMode int) error {
	f.batteryMu.Lock()
	defer f.batteryMu.Unlock()

	if !f.transport.HasInterface(wmi.BatteryGUID) {
		f.log.Info("battery control guid not found")
		return nil
	}
	f.batteryPresent = true

	if healthMode >= 0 {
		if err := f.battery.Set(ctx, HealthMode, healthMode > 0); err != nil {
			return err
		}
	}

	status, err := f.battery.Query(ctx)
	if err != nil {
		return err
	}

	logModes(f.log, "available", true, status.Health.Supported(), status.Calibration.Supported())
	logModes(f.log, "active", false, status.Health == On, status.Calibration == On)

	f.handler.BatteryStatus(status)
	return nil
}

// initControlMode expects modeMu to be held
func (f *Facade) initControlMode(initial int) error {
	err := f.mode.Init(initial)
	if mode, merr := f.mode.Mode(); merr == nil {
		f.handler.SystemControlMode(mode)
	}
	return err
}

func (f *Facade) initUsbCharge(ctx context.Context) {
	f.usbMu.Lock()
	defer f.usbMu.Unlock()

	if !f.transport.HasInterface(wmi.ApgeActionGUID) {
		f.log.Info("usb charging control guid not found")
		f.usb.supported = false
		return
	}

	state, err := f.usb.QueryStatus(ctx)
	if err != nil {
		f.log.Errorf("error getting usb charging status: %v", err)
		return
	}
	f.handler.UsbCharge(state)
}

// BatteryStatus returns the mirrored battery status
func (f *Facade) BatteryStatus() BatteryStatus {
	f.batteryMu.Lock()
	defer f.batteryMu.Unlock()

	return f.battery.Status()
}

// RefreshBattery queries the firmware again. Calibration ends on its own,
// and this is the only way to notice.
func (f *Facade) RefreshBattery(ctx context.Context) (BatteryStatus, error) {
	f.batteryMu.Lock()
	defer f.batteryMu.Unlock()

	if !f.batteryPresent {
		return f.battery.Status(), errors.Wrap(ErrNoDevice, "battery control interface")
	}

	status, err := f.battery.Query(ctx)
	if err != nil {
		return status, err
	}

	f.handler.BatteryStatus(status)
	return status, nil
}

// SetBatteryMode switches a battery mode and re-reads the firmware state.
func (f *Facade) SetBatteryMode(ctx context.Context, mode BatteryMode, enabled bool) (BatteryStatus, error) {
	f.batteryMu.Lock()
	defer f.batteryMu.Unlock()

	current := f.battery.Status()

	var state TriState
	switch mode {
	case HealthMode:
		state = current.Health
	case CalibrationMode:
		state = current.Calibration
	default:
		return current, errors.Wrapf(ErrInvalidArgument, "battery mode %d", mode)
	}
	if !state.Supported() {
		return current, errors.Wrapf(ErrUnsupported, "battery %s", mode)
	}

	if err := f.battery.Set(ctx, mode, enabled); err != nil {
		return current, err
	}

	status, err := f.battery.Query(ctx)
	if err != nil {
		return status, err
	}

	f.handler.BatteryStatus(status)
	return status, nil
}

// SystemControlMode returns the mirrored system control mode
func (f *Facade) SystemControlMode() (SystemControlMode, error) {
	f.modeMu.Lock()
	defer f.modeMu.Unlock()

	return f.mode.Mode()
}

// SetSystemControlMode writes a new mode to the EC
func (f *Facade) SetSystemControlMode(mode SystemControlMode) error {
	f.modeMu.Lock()
	defer f.modeMu.Unlock()

	if err := f.mode.Write(mode); err != nil {
		return err
	}

	f.handler.SystemControlMode(mode)
	return nil
}

// ReadSystemControlMode re-reads the register, picking up changes made
// behind our back.
func (f *Facade) ReadSystemControlMode() (SystemControlMode, error) {
	f.modeMu.Lock()
	defer f.modeMu.Unlock()

	if _, err := f.mode.Mode(); err != nil {
		return 0, err
	}

	mode, err := f.mode.Read()
	if err != nil {
		return 0, err
	}

	f.handler.SystemControlMode(mode)
	return mode, nil
}

// UsbCharge returns the mirrored USB charge state
func (f *Facade) UsbCharge() (UsbChargeState, error) {
	f.usbMu.Lock()
	defer f.usbMu.Unlock()

	if !f.usb.Supported() {
		return f.usb.State(), ErrUnsupported
	}
	return f.usb.State(), nil
}

// QueryUsbCharge reads the USB charge state from the firmware
func (f *Facade) QueryUsbCharge(ctx context.Context) (UsbChargeState, error) {
	f.usbMu.Lock()
	defer f.usbMu.Unlock()

	state, err := f.usb.QueryStatus(ctx)
	if err != nil {
		return state, err
	}

	f.handler.UsbCharge(state)
	return state, nil
}

func (f *Facade) SetUsbCharge(ctx context.Context, on bool) error {
	f.usbMu.Lock()
	defer f.usbMu.Unlock()

	if err := f.usb.SetEnabled(ctx, on); err != nil {
		return err
	}

	f.handler.UsbCharge(f.usb.State())
	return nil
}

func (f *Facade) SetUsbChargeLimit(ctx context.Context, limit int) error {
	f.usbMu.Lock()
	defer f.usbMu.Unlock()

	if err := f.usb.SetLimit(ctx, limit); err != nil {
		return err
	}

	f.handler.UsbCharge(f.usb.State())
	return nil
}

// ProfileHandler returns the profile callbacks backed by the system
// control mode, for frameworks that are driven without BindProfile.
func (f *Facade) ProfileHandler() ProfileHandler {
	return profileAdapter{f}
}
