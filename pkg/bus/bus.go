package bus

import (
	"context"

	evbus "github.com/asaskevich/EventBus"
	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"
)

// CreateMessageBus creates a bus, builds the facade with its state changes
// published as events, and subscribes the facade to bus commands.
func CreateMessageBus(ctx context.Context, build func(acer.Handler) *acer.Facade) (*acer.Facade, evbus.Bus) {
	bus := evbus.New()

	f := build(&eventHandler{bus: bus})
	createCommandHandler(ctx, f, bus)

	return f, bus
}
