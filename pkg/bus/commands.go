package bus

import (
	"context"

	evbus "github.com/asaskevich/EventBus"
	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// (name string, value int)
	TOPIC_COMMAND_SET = "command.set"
	// (profile acer.Profile)
	TOPIC_COMMAND_PROFILE = "command.profile"
	// ()
	TOPIC_COMMAND_REFRESH = "command.refresh"
)

func createCommandHandler(ctx context.Context, f *acer.Facade, bus evbus.Bus) {
	bus.SubscribeAsync(TOPIC_COMMAND_SET, func(name string, value int) {
		if err := f.SetValue(ctx, name, value); err != nil {
			log.Warnf("command for %s failed: %v", name, err)
			bus.Publish(TOPIC_EVENT_COMMAND_FAILED, name, err)
		}
	}, false)

	bus.SubscribeAsync(TOPIC_COMMAND_PROFILE, func(profile acer.Profile) {
		if err := f.ProfileHandler().Set(ctx, profile); err != nil {
			log.Warnf("platform profile %q failed: %v", profile, err)
			bus.Publish(TOPIC_EVENT_COMMAND_FAILED, acer.AttrSystemControlMode, err)
		}
	}, false)

	bus.SubscribeAsync(TOPIC_COMMAND_REFRESH, func() {
		Refresh(ctx, f)
	}, true)
}

// Refresh re-reads every mode the model supports from the firmware. The
// facade publishes what it reads; failures are only logged.
func Refresh(ctx context.Context, f *acer.Facade) {
	if _, err := f.RefreshBattery(ctx); err != nil && !errors.Is(err, acer.ErrNoDevice) {
		log.Warnf("refreshing battery modes failed: %v", err)
	}

	caps := f.Capabilities()
	if caps.SystemControlMode {
		if _, err := f.ReadSystemControlMode(); err != nil && !errors.Is(err, acer.ErrNoDevice) {
			log.Warnf("reading system control mode failed: %v", err)
		}
	}
	if caps.UsbChargeMode {
		if _, err := f.QueryUsbCharge(ctx); err != nil && !errors.Is(err, acer.ErrUnsupported) {
			log.Warnf("querying usb charge mode failed: %v", err)
		}
	}
}
