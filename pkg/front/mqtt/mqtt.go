package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"
	"github.com/karloygard/acer-wmi-ext-go/pkg/bus"

	mqttclient "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	// Attributes the model supports; only these are announced and accepted
	Attributes []string

	// Model name shown in Home Assistant
	Model string

	// Home Assistant discovery; an empty prefix turns it off
	HADiscoveryPrefix     string
	HADiscoveryAutoremove bool
}

type MqttRelay struct {
	ctx      context.Context
	clientId string
	bus      evbus.Bus
	opts     Options

	// m guards client and profile
	m       sync.Mutex
	client  mqttclient.Client
	profile acer.ProfileHandler
}

func init() {
	mqttclient.ERROR = pahoLogger{log.ErrorLevel}
	mqttclient.CRITICAL = pahoLogger{log.ErrorLevel}
	mqttclient.WARN = pahoLogger{log.WarnLevel}
}

type pahoLogger struct {
	level log.Level
}

func (p pahoLogger) Println(v ...interface{}) {
	log.StandardLogger().Logln(p.level, v...)
}

func (p pahoLogger) Printf(format string, v ...interface{}) {
	log.StandardLogger().Logf(p.level, format, v...)
}

// CreateMqttRelay connects to the broker and relays between MQTT topics
// and the message bus. The connection is retried in the background.
func CreateMqttRelay(ctx context.Context, clientId string, uri *url.URL, b evbus.Bus, opts Options) (*MqttRelay, error) {
	r := newRelay(ctx, clientId, b, opts)

	clientOpts := mqttclient.NewClientOptions()
	broker := fmt.Sprintf("tcp://%s", uri.Host)

	log.Infof("connecting to MQTT broker '%s' with id '%s'", broker, clientId)

	clientOpts.AddBroker(broker).
		SetClientID(clientId).
		SetConnectRetry(true).
		SetOnConnectHandler(r.connected).
		SetConnectionLostHandler(r.connectionLost).
		SetKeepAlive(30*time.Second).
		SetUsername(uri.User.Username()).
		SetWill(r.topic("status"), "offline", 1, true)
	if password, set := uri.User.Password(); set {
		clientOpts.SetPassword(password)
	}

	client := mqttclient.NewClient(clientOpts)
	r.m.Lock()
	r.client = client
	r.m.Unlock()

	t := client.Connect()
	go func() {
		<-t.Done()
		if t.Error() != nil {
			log.Error(t.Error())
		}
	}()

	return r, nil
}

func newRelay(ctx context.Context, clientId string, b evbus.Bus, opts Options) *MqttRelay {
	r := &MqttRelay{
		ctx:      ctx,
		clientId: clientId,
		bus:      b,
		opts:     opts,
	}

	b.SubscribeAsync(bus.TOPIC_EVENT_VALUE, func(name string, value int) {
		r.publish(r.topic(name, "get"), fmt.Sprint(value), true)
	}, false)

	b.SubscribeAsync(bus.TOPIC_EVENT_PROFILE, func(profile acer.Profile) {
		r.publish(r.topic(profileTopic, "get"), string(profile), true)
	}, false)

	b.SubscribeAsync(bus.TOPIC_EVENT_COMMAND_FAILED, func(name string, err error) {
		r.publish(r.topic(name, "error"), err.Error(), false)
	}, false)

	return r
}

func (r *MqttRelay) Close() {
	if err := r.HADiscoveryRemove(); err != nil {
		log.Error(err)
	}
	r.publish(r.topic("status"), "offline", true)
	if c := r.conn(); c != nil {
		c.Disconnect(1000)
	}
}

func (r *MqttRelay) conn() mqttclient.Client {
	r.m.Lock()
	defer r.m.Unlock()
	return r.client
}

func (r *MqttRelay) topic(parts ...string) string {
	return r.clientId + "/" + strings.Join(parts, "/")
}

func (r *MqttRelay) supports(name string) bool {
	for _, a := range r.opts.Attributes {
		if a == name {
			return true
		}
	}
	return false
}

func (r *MqttRelay) connected(c mqttclient.Client) {
	r.subscribe(r.topic("+", "set"), func(_ mqttclient.Client, msg mqttclient.Message) {
		go r.handleCommand(msg)
	})

	if r.opts.HADiscoveryPrefix != "" {
		r.subscribe(r.opts.HADiscoveryPrefix+"/status", func(_ mqttclient.Client, msg mqttclient.Message) {
			go r.hassStatusCallback(msg)
		})
	}

	r.m.Lock()
	handler := r.profile
	r.m.Unlock()
	if handler != nil {
		r.subscribe(r.topic(profileTopic, "set"), r.profileCallback)
	}

	r.publish(r.topic("status"), "online", true)
	r.bus.Publish(bus.TOPIC_COMMAND_REFRESH)

	if err := r.HADiscoveryAdd(); err != nil {
		log.Error(err)
	}

	log.Info("connected to broker")
}

func (r *MqttRelay) connectionLost(c mqttclient.Client, err error) {
	log.Warnf("lost connection with broker: %s", err)
}

func (r *MqttRelay) handleCommand(msg mqttclient.Message) {
	var name string

	parts := strings.Split(msg.Topic(), "/")
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}

	log.Debugf("MQTT message; topic: '%s', message: '%s'", msg.Topic(), string(msg.Payload()))

	if !r.supports(name) {
		log.Warnf("unknown attribute '%s'", name)
		return
	}

	value, err := acer.ParseValue(name, string(msg.Payload()))
	if err != nil {
		log.Warn(err)
		r.publish(r.topic(name, "error"), err.Error(), false)
		return
	}

	r.bus.Publish(bus.TOPIC_COMMAND_SET, name, value)
}

func (r *MqttRelay) publish(topic string, msg string, retained bool) {
	c := r.conn()
	if c == nil {
		return
	}
	t := c.Publish(topic, 1, retained, msg)
	go func() {
		<-t.Done()
		if t.Error() != nil {
			log.Error(t.Error())
		}
	}()
}

func (r *MqttRelay) subscribe(topic string, callback mqttclient.MessageHandler) {
	t := r.conn().Subscribe(topic, 1, callback)
	go func() {
		<-t.Done()
		if t.Error() != nil {
			log.Error(t.Error())
		}
	}()
}

func (r *MqttRelay) subscribeSync(topic string, callback mqttclient.MessageHandler) error {
	t := r.conn().Subscribe(topic, 1, callback)
	t.Wait()
	return errors.Wrapf(t.Error(), "subscribing to %s", topic)
}
