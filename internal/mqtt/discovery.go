//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string
	Payload []byte
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Device            haDevice `json:"device"`
}

// nodeID sanitizes a device id for the HA discovery topic, which only
// allows [a-zA-Z0-9_-].
func nodeID(device string) string {
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, device)
	return "wlckg1_" + safe
}

// buildDiscovery generates the HA entities for one lock. The bridge only
// observes, so the lock state is exposed as a sensor rather than an HA
// lock entity, which would demand a command topic.
func buildDiscovery(device, prefix string) []discoveryMsg {
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + device
	id := nodeID(device)

	haDev := haDevice{
		Identifiers:  []string{id},
		Manufacturer: "Wyze",
		Model:        "WLCKG1",
		Name:         device,
	}

	return []discoveryMsg{
		buildSensor(id, device, stateTopic, avail, haDev,
			"lock_state", "Lock", "{{ value_json.lock_state }}"),
		buildSensor(id, device, stateTopic, avail, haDev,
			"action", "Last Action", "{{ value_json.action }}"),
		buildBinarySensor(id, device, stateTopic, avail, haDev,
			"door", "Door", "door",
			"{{ 'ON' if value_json.door_state == 'open' else 'OFF' }}"),
	}
}

func buildSensor(id, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/sensor/%s/%s/config", id, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          id + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}

func buildBinarySensor(id, displayName, stateTopic, avail string, haDev haDevice,
	objectID, suffix, deviceClass, valueTmpl string) discoveryMsg {

	topic := fmt.Sprintf("homeassistant/binary_sensor/%s/%s/config", id, objectID)
	payload := haDiscovery{
		Name:              displayName + " " + suffix,
		UniqueID:          id + "_" + objectID,
		StateTopic:        stateTopic,
		AvailabilityTopic: avail,
		ValueTemplate:     valueTmpl,
		DeviceClass:       deviceClass,
		PayloadOn:         "ON",
		PayloadOff:        "OFF",
		Device:            haDev,
	}
	return discoveryMsg{Topic: topic, Payload: mustJSON(payload)}
}
