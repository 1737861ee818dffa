package mqtt

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/karloygard/acer-wmi-ext-go/pkg/acer"

	mqttclient "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var stripNonAlphanumeric = regexp.MustCompile("[^a-zA-Z0-9]+")

var attributeNames = map[string]string{
	acer.AttrHealthMode:        "Battery health mode",
	acer.AttrCalibrationMode:   "Battery calibration mode",
	acer.AttrSystemControlMode: "System control mode",
	acer.AttrUsbChargeMode:     "USB charging while off",
	acer.AttrUsbChargeLimit:    "USB charging battery limit",
}

func (r *MqttRelay) addDevice(topic, addMsg, removeMsg string) {
	r.conn().Publish(topic, 1, true, addMsg)
}

func (r *MqttRelay) removeDevice(topic, addMsg, removeMsg string) {
	token := r.conn().Publish(topic, 1, true, removeMsg)
	token.Wait()
}

func (r *MqttRelay) hassStatusCallback(msg mqttclient.Message) {
	switch string(msg.Payload()) {
	case "online":
		log.Info("HA going online, sending mqtt discovery messages")
		if err := r.HADiscoveryAdd(); err != nil {
			log.Error(err)
		}
	}
}

// HADiscoveryAdd sends discovery messages that add every supported
// attribute to Home Assistant.
func (r *MqttRelay) HADiscoveryAdd() error {
	if r.opts.HADiscoveryPrefix == "" {
		return nil
	}

	for _, name := range r.opts.Attributes {
		if err := createDiscoveryMessages(r.opts.HADiscoveryPrefix, r.clientId, r.opts.Model, name, r.addDevice); err != nil {
			return err
		}
	}

	log.Infof("sent MQTT autodiscover add for %d attributes", len(r.opts.Attributes))

	return nil
}

// HADiscoveryRemove sends empty discovery messages, removing the entities
// from Home Assistant. This also wipes any alterations the user made in HA,
// so it only happens with autoremove on.
func (r *MqttRelay) HADiscoveryRemove() error {
	if r.opts.HADiscoveryPrefix == "" || !r.opts.HADiscoveryAutoremove {
		return nil
	}

	for _, name := range r.opts.Attributes {
		if err := createDiscoveryMessages(r.opts.HADiscoveryPrefix, r.clientId, r.opts.Model, name, r.removeDevice); err != nil {
			return err
		}
	}

	log.Infof("sent MQTT autodiscover remove for %d attributes", len(r.opts.Attributes))

	return nil
}

func createDiscoveryMessages(discoveryPrefix, clientId, model, name string, fn func(topic, addMsg, removeMsg string)) error {
	deviceID := stripNonAlphanumeric.ReplaceAllString(clientId, "_")
	objectID := fmt.Sprintf("%s_%s", deviceID, name)

	config := map[string]interface{}{
		"name":               attributeNames[name],
		"unique_id":          objectID,
		"command_topic":      fmt.Sprintf("%s/%s/set", clientId, name),
		"state_topic":        fmt.Sprintf("%s/%s/get", clientId, name),
		"availability_topic": fmt.Sprintf("%s/status", clientId),
		"entity_category":    "config",
		"device": map[string]string{
			"identifiers":  deviceID,
			"name":         model,
			"manufacturer": "Acer",
			"model":        model,
		},
	}

	var component string

	switch name {
	case acer.AttrHealthMode, acer.AttrCalibrationMode, acer.AttrUsbChargeMode:
		component = "switch"
		config["payload_on"] = "1"
		config["payload_off"] = "0"
		config["state_on"] = "1"
		config["state_off"] = "0"
		config["optimistic"] = false

	case acer.AttrSystemControlMode:
		component = "select"
		config["options"] = []string{
			acer.Balanced.String(),
			acer.Silent.String(),
			acer.Performance.String(),
		}
		config["command_template"] = fmt.Sprintf("{{ {'%s': 1, '%s': 2, '%s': 3}[value] }}",
			acer.Balanced, acer.Silent, acer.Performance)
		config["value_template"] = fmt.Sprintf("{{ {'1': '%s', '2': '%s', '3': '%s'}.get(value) }}",
			acer.Balanced, acer.Silent, acer.Performance)

	case acer.AttrUsbChargeLimit:
		component = "select"
		config["options"] = []string{"10", "20", "30"}
		// -1 while charging is off or the code is unknown
		config["value_template"] = "{{ value if value in ['10', '20', '30'] else None }}"

	default:
		return errors.Errorf("no discovery message for attribute %s", name)
	}

	addMsg, err := json.Marshal(config)
	if err != nil {
		return errors.WithStack(err)
	}

	fn(fmt.Sprintf("%s/%s/%s/config", discoveryPrefix, component, objectID), string(addMsg), "")

	return nil
}
