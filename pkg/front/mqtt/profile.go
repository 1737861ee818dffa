package mqtt

import (
	"context"
	"strings"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"
	"github.com/karloygard/acer-wmi-ext-go/pkg/bus"

	mqttclient "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const profileTopic = "platform_profile"

var errNotConnected = errors.New("not connected to broker")

// Register publishes a profile handler as <id>/platform_profile, taking
// profile names on its set topic. It fails while the broker connection is
// down, so callers are expected to retry.
func (r *MqttRelay) Register(ctx context.Context, name string, handler acer.ProfileHandler) error {
	if c := r.conn(); c == nil || !c.IsConnectionOpen() {
		return errNotConnected
	}

	choices, err := handler.Probe(ctx)
	if err != nil {
		return err
	}

	if err := r.subscribeSync(r.topic(profileTopic, "set"), r.profileCallback); err != nil {
		return err
	}

	r.m.Lock()
	r.profile = handler
	r.m.Unlock()

	names := make([]string, len(choices))
	for i, c := range choices {
		names[i] = string(c)
	}
	r.publish(r.topic(profileTopic, "choices"), strings.Join(names, ","), true)
	r.publish(r.topic(profileTopic, "handler"), name, true)

	if current, err := handler.Get(ctx); err == nil {
		r.publish(r.topic(profileTopic, "get"), string(current), true)
	}

	return nil
}

func (r *MqttRelay) profileCallback(_ mqttclient.Client, msg mqttclient.Message) {
	profile := acer.Profile(strings.TrimSpace(string(msg.Payload())))

	log.Debugf("MQTT message; topic: '%s', message: '%s'", msg.Topic(), profile)

	r.bus.Publish(bus.TOPIC_COMMAND_PROFILE, profile)
}
