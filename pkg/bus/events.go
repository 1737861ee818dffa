package bus

import (
	evbus "github.com/asaskevich/EventBus"
	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"
)

const (
	// (name string, value int)
	TOPIC_EVENT_VALUE = "event.value"
	// (profile acer.Profile)
	TOPIC_EVENT_PROFILE = "event.profile"
	// (name string, err error)
	TOPIC_EVENT_COMMAND_FAILED = "event.command_failed"
)

type eventHandler struct {
	bus evbus.Bus
}

func (e *eventHandler) BatteryStatus(status acer.BatteryStatus) {
	e.bus.Publish(TOPIC_EVENT_VALUE, acer.AttrHealthMode, int(status.Health))
	e.bus.Publish(TOPIC_EVENT_VALUE, acer.AttrCalibrationMode, int(status.Calibration))
}

func (e *eventHandler) SystemControlMode(mode acer.SystemControlMode) {
	e.bus.Publish(TOPIC_EVENT_VALUE, acer.AttrSystemControlMode, int(mode))
	if profile, known := acer.ProfileOf(mode); known {
		e.bus.Publish(TOPIC_EVENT_PROFILE, profile)
	}
}

func (e *eventHandler) UsbCharge(state acer.UsbChargeState) {
	e.bus.Publish(TOPIC_EVENT_VALUE, acer.AttrUsbChargeMode, int(state.Enabled))

	limit := state.Limit
	if limit == 0 {
		limit = -1
	}
	e.bus.Publish(TOPIC_EVENT_VALUE, acer.AttrUsbChargeLimit, limit)
}
