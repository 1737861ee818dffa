package acer

import (
	"context"
	"sync"
	"syscall"
	"testing"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer/acertest"
	"github.com/karloygard/acer-wmi-ext-go/pkg/ec"
	"github.com/karloygard/acer-wmi-ext-go/pkg/quirks"
	"github.com/karloygard/acer-wmi-ext-go/pkg/wmi"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCaps = quirks.Capabilities{SystemControlMode: true, UsbChargeMode: true}

func newTestFacade(t *testing.T, caps quirks.Capabilities) (*Facade, *acertest.Firmware, *acertest.Register, *recordingHandler) {
	t.Helper()

	fw := acertest.NewFirmware()
	reg := newFakeRegister(Balanced)
	h := &recordingHandler{}
	f := NewFacade(fw, reg, caps, h)

	return f, fw, reg, h
}

func TestInitDiscoversState(t *testing.T) {
	f, fw, _, h := newTestFacade(t, allCaps)
	fw.Calibration = 1
	fw.UsbCode = 1314560

	require.NoError(t, f.Init(context.Background(), DefaultOptions))

	assert.Equal(t, BatteryStatus{Health: Off, Calibration: On}, f.BatteryStatus())

	mode, err := f.SystemControlMode()
	require.NoError(t, err)
	assert.Equal(t, Balanced, mode)

	usb, err := f.UsbCharge()
	require.NoError(t, err)
	assert.Equal(t, UsbChargeState{Enabled: On, Limit: 20}, usb)

	assert.Len(t, h.battery, 1)
	assert.Equal(t, []SystemControlMode{Balanced}, h.modes)
	assert.Len(t, h.usb, 1)
}

func TestInitAppliesOptions(t *testing.T) {
	f, fw, reg, _ := newTestFacade(t, allCaps)

	require.NoError(t, f.Init(context.Background(), Options{HealthMode: 1, SystemControlMode: 3}))

	calls := fw.Calls()
	require.GreaterOrEqual(t, len(calls), 2)
	assert.Equal(t, uint32(methodSetBatteryControl), calls[0].Method)
	assert.Equal(t, uint32(methodGetBatteryControl), calls[1].Method)

	assert.Equal(t, On, f.BatteryStatus().Health)
	assert.Equal(t, byte(Performance), reg.Values[SystemControlModeOffset])
}

func TestInitBatteryFailureIsFatal(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, allCaps)
	fw.Override = func(acertest.Call) (wmi.Response, error) {
		return wmi.Response{Kind: wmi.Buffer, Data: make([]byte, 7)}, nil
	}

	err := f.Init(context.Background(), DefaultOptions)
	assert.True(t, errors.Is(err, ErrBadLength))
	assert.Equal(t, syscall.EIO, Errno(err))
	assert.Equal(t, BatteryStatus{Health: Unsupported, Calibration: Unsupported}, f.BatteryStatus())
}

func TestInitWithoutBatteryInterface(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, quirks.Capabilities{})
	delete(fw.Present, wmi.BatteryGUID)

	require.NoError(t, f.Init(context.Background(), Options{HealthMode: 1, SystemControlMode: -1}))
	assert.Empty(t, fw.Calls())

	err := f.SetValue(context.Background(), AttrHealthMode, 1)
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = f.RefreshBattery(context.Background())
	assert.True(t, errors.Is(err, ErrNoDevice))
	assert.Empty(t, fw.Calls())
}

func TestInitWithoutUsbInterface(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, allCaps)
	delete(fw.Present, wmi.ApgeActionGUID)

	require.NoError(t, f.Init(context.Background(), DefaultOptions))
	fw.Reset()

	_, err := f.UsbCharge()
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.True(t, errors.Is(f.SetUsbCharge(context.Background(), true), ErrUnsupported))
	assert.Empty(t, fw.Calls())
}

func TestInitControlModeReadFailure(t *testing.T) {
	f, _, reg, _ := newTestFacade(t, allCaps)
	reg.ReadErr = &ec.RegisterError{Op: "read", Offset: SystemControlModeOffset, Err: errRegister}

	require.NoError(t, f.Init(context.Background(), DefaultOptions))

	_, err := f.Value(context.Background(), AttrSystemControlMode)
	assert.Equal(t, syscall.ENODEV, Errno(err))

	_, err = f.ProfileHandler().Probe(context.Background())
	assert.True(t, errors.Is(err, ErrNoDevice))
}

func TestUnknownModelRejectsOptionalOperations(t *testing.T) {
	f, fw, reg, _ := newTestFacade(t, quirks.NewRegistry().Resolve(quirks.ModelKey{Vendor: "Acer", Product: "Unknown"}))
	ctx := context.Background()

	require.NoError(t, f.Init(ctx, DefaultOptions))
	fw.Reset()

	for _, name := range []string{AttrSystemControlMode, AttrUsbChargeMode, AttrUsbChargeLimit} {
		_, err := f.Value(ctx, name)
		assert.True(t, errors.Is(err, ErrUnsupported), "read %s: %v", name, err)
		assert.Equal(t, syscall.EOPNOTSUPP, Errno(err))
	}

	assert.True(t, errors.Is(f.SetValue(ctx, AttrSystemControlMode, 2), ErrUnsupported))
	assert.True(t, errors.Is(f.SetValue(ctx, AttrUsbChargeMode, 1), ErrUnsupported))
	assert.True(t, errors.Is(f.SetValue(ctx, AttrUsbChargeLimit, 20), ErrUnsupported))

	_, err := f.ProfileHandler().Probe(ctx)
	assert.True(t, errors.Is(err, ErrUnsupported))

	assert.Empty(t, fw.Calls())
	assert.Equal(t, 0, reg.Reads+reg.Writes)
}

func TestSetBatteryModeRequeries(t *testing.T) {
	f, fw, _, h := newTestFacade(t, allCaps)
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))

	once, err := f.SetBatteryMode(ctx, CalibrationMode, true)
	require.NoError(t, err)
	assert.Equal(t, On, once.Calibration)

	fw.Reset()
	twice, err := f.SetBatteryMode(ctx, CalibrationMode, true)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	calls := fw.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, uint32(methodSetBatteryControl), calls[0].Method)
	assert.Equal(t, uint32(methodGetBatteryControl), calls[1].Method)

	assert.Len(t, h.battery, 3)
}

func TestSetBatteryModeUnsupported(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, allCaps)
	fw.Functions = 1
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))
	fw.Reset()

	_, err := f.SetBatteryMode(ctx, CalibrationMode, true)
	assert.True(t, errors.Is(err, ErrUnsupported))
	assert.Empty(t, fw.Calls())

	v, err := f.Value(ctx, AttrCalibrationMode)
	require.NoError(t, err)
	assert.Equal(t, -1, v)
}

func TestSetBatteryModeRequeryFailure(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, allCaps)
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))
	before := f.BatteryStatus()

	fw.Override = func(c acertest.Call) (wmi.Response, error) {
		if c.Method == methodSetBatteryControl {
			return wmi.Response{Kind: wmi.Buffer, Data: make([]byte, 4)}, nil
		}
		return wmi.Response{Kind: wmi.Buffer, Data: make([]byte, 7)}, nil
	}

	_, err := f.SetBatteryMode(ctx, HealthMode, true)
	assert.True(t, errors.Is(err, ErrBadLength))
	assert.Equal(t, before, f.BatteryStatus())
}

func TestRefreshBatterySeesCalibrationEnd(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, allCaps)
	fw.Calibration = 1
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))

	fw.Update(func(fw *acertest.Firmware) { fw.Calibration = 0 })

	assert.Equal(t, On, f.BatteryStatus().Calibration)

	status, err := f.RefreshBattery(ctx)
	require.NoError(t, err)
	assert.Equal(t, Off, status.Calibration)
}

func TestSystemControlModeAttribute(t *testing.T) {
	f, _, reg, h := newTestFacade(t, allCaps)
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))

	require.NoError(t, f.SetValue(ctx, AttrSystemControlMode, 2))

	v, err := f.Value(ctx, AttrSystemControlMode)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	mode, err := f.ReadSystemControlMode()
	require.NoError(t, err)
	assert.Equal(t, Silent, mode)

	for _, bad := range []int{0, 4, -1, 258} {
		err := f.SetValue(ctx, AttrSystemControlMode, bad)
		assert.Equal(t, syscall.EINVAL, Errno(err), "value %d", bad)
	}
	assert.Equal(t, 1, reg.Writes)
	assert.Equal(t, []SystemControlMode{Balanced, Silent, Silent}, h.modes)
}

func TestReadSystemControlModePicksUpExternalWrite(t *testing.T) {
	f, _, reg, _ := newTestFacade(t, allCaps)
	require.NoError(t, f.Init(context.Background(), DefaultOptions))

	reg.Values[SystemControlModeOffset] = byte(Performance)

	mode, err := f.SystemControlMode()
	require.NoError(t, err)
	assert.Equal(t, Balanced, mode)

	mode, err = f.ReadSystemControlMode()
	require.NoError(t, err)
	assert.Equal(t, Performance, mode)
}

func TestUsbChargeAttributes(t *testing.T) {
	f, fw, _, _ := newTestFacade(t, allCaps)
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))

	v, err := f.Value(ctx, AttrUsbChargeMode)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = f.Value(ctx, AttrUsbChargeLimit)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	fw.Reset()
	err = f.SetValue(ctx, AttrUsbChargeLimit, 20)
	assert.Equal(t, syscall.EINVAL, Errno(err))
	assert.Empty(t, fw.Calls())

	require.NoError(t, f.SetValue(ctx, AttrUsbChargeMode, 1))
	v, err = f.Value(ctx, AttrUsbChargeLimit)
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	require.NoError(t, f.SetValue(ctx, AttrUsbChargeLimit, 10))
	v, err = f.Value(ctx, AttrUsbChargeLimit)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	err = f.SetValue(ctx, AttrUsbChargeMode, 2)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestUnknownAttribute(t *testing.T) {
	f, _, _, _ := newTestFacade(t, allCaps)

	_, err := f.Value(context.Background(), "fan_speed")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(f.SetValue(context.Background(), "fan_speed", 1), ErrInvalidArgument))
}

func TestParseValue(t *testing.T) {
	for _, s := range []string{"1", "on", "Y", "true "} {
		v, err := ParseValue(AttrHealthMode, s)
		require.NoError(t, err, s)
		assert.Equal(t, 1, v)
	}

	v, err := ParseValue(AttrUsbChargeMode, "off")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = ParseValue(AttrUsbChargeLimit, "20\n")
	require.NoError(t, err)
	assert.Equal(t, 20, v)

	_, err = ParseValue(AttrSystemControlMode, "on")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestErrno(t *testing.T) {
	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{errors.Wrap(ErrInvalidArgument, "x"), syscall.EINVAL},
		{ErrInvalidState, syscall.EINVAL},
		{ErrUnsupported, syscall.EOPNOTSUPP},
		{ErrNoDevice, syscall.ENODEV},
		{errors.Wrap(wmi.ErrCallFailed, "AE_NOT_FOUND"), syscall.ENODEV},
		{wmi.ErrNoResult, syscall.ENODEV},
		{ErrBadShape, syscall.EIO},
		{&ec.RegisterError{Op: "write", Offset: 0x45, Err: errRegister}, syscall.EIO},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Errno(tt.err), "%v", tt.err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	f, _, _, _ := newTestFacade(t, allCaps)
	ctx := context.Background()
	require.NoError(t, f.Init(ctx, DefaultOptions))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				assert.NoError(t, f.SetValue(ctx, AttrSystemControlMode, 1+(i+j)%3))
				assert.NoError(t, f.SetValue(ctx, AttrHealthMode, (i+j)%2))
				assert.NoError(t, f.SetValue(ctx, AttrUsbChargeMode, 1))
				_, err := f.Value(ctx, AttrUsbChargeLimit)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	mode, err := f.SystemControlMode()
	require.NoError(t, err)
	assert.True(t, mode.Valid())
}
