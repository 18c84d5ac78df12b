//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chanronson/wlckg1-bridge/internal/store"
)

func TestRenderState(t *testing.T) {
	contact := true
	seen := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &store.DeviceState{
		Device:     "lock-a",
		LockState:  "locked",
		DoorState:  "closed",
		Contact:    &contact,
		LastAction: "manual",
		LastSeen:   seen,
		EventCount: 7,
	}

	data, err := json.Marshal(renderState(st))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]interface{}{
		"state":       "LOCK",
		"lock_state":  "locked",
		"action":      "manual",
		"door_state":  "closed",
		"contact":     true,
		"last_seen":   "2024-06-01T12:00:00Z",
		"event_count": float64(7),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestRenderStateOmitsUnknownFields(t *testing.T) {
	// A device that has only ever sent door frames has no lock state yet.
	st := &store.DeviceState{
		Device:     "lock-a",
		DoorState:  "open",
		EventCount: 1,
	}

	data, err := json.Marshal(renderState(st))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, absent := range []string{"state", "lock_state", "action", "contact", "last_seen"} {
		if _, ok := got[absent]; ok {
			t.Errorf("%s should be omitted, got %v", absent, got[absent])
		}
	}
	if got["door_state"] != "open" {
		t.Errorf("door_state = %v, want open", got["door_state"])
	}
}

func TestCommandFor(t *testing.T) {
	tests := []struct {
		lockState string
		want      string
	}{
		{"locked", "LOCK"},
		{"unlocked", "UNLOCK"},
		{"", ""},
		{"jammed", ""},
	}
	for _, tt := range tests {
		if got := commandFor(tt.lockState); got != tt.want {
			t.Errorf("commandFor(%q) = %q, want %q", tt.lockState, got, tt.want)
		}
	}
}

func TestNodeID(t *testing.T) {
	tests := []struct {
		device string
		want   string
	}{
		{"lock-a", "wlckg1_lock-a"},
		{"D0:0B:12:33", "wlckg1_D0_0B_12_33"},
		{"front door", "wlckg1_front_door"},
	}
	for _, tt := range tests {
		if got := nodeID(tt.device); got != tt.want {
			t.Errorf("nodeID(%q) = %q, want %q", tt.device, got, tt.want)
		}
	}
}

func TestBuildDiscovery(t *testing.T) {
	msgs := buildDiscovery("front-door", "wlckg1")
	if len(msgs) != 3 {
		t.Fatalf("got %d discovery messages, want 3", len(msgs))
	}

	topics := make(map[string]bool)
	for _, m := range msgs {
		topics[m.Topic] = true
	}
	for _, want := range []string{
		"homeassistant/sensor/wlckg1_front-door/lock_state/config",
		"homeassistant/sensor/wlckg1_front-door/action/config",
		"homeassistant/binary_sensor/wlckg1_front-door/door/config",
	} {
		if !topics[want] {
			t.Errorf("missing discovery topic %s", want)
		}
	}

	for _, m := range msgs {
		var payload haDiscovery
		if err := json.Unmarshal(m.Payload, &payload); err != nil {
			t.Fatalf("unmarshal %s: %v", m.Topic, err)
		}
		if payload.StateTopic != "wlckg1/front-door" {
			t.Errorf("state_topic = %q, want wlckg1/front-door", payload.StateTopic)
		}
		if payload.AvailabilityTopic != "wlckg1/bridge/state" {
			t.Errorf("availability_topic = %q, want wlckg1/bridge/state", payload.AvailabilityTopic)
		}
		if payload.Device.Model != "WLCKG1" {
			t.Errorf("device.model = %q, want WLCKG1", payload.Device.Model)
		}
	}
}

func TestBuildDiscoveryDoorSensor(t *testing.T) {
	msgs := buildDiscovery("front-door", "wlckg1")

	var door *haDiscovery
	for _, m := range msgs {
		if m.Topic == "homeassistant/binary_sensor/wlckg1_front-door/door/config" {
			door = &haDiscovery{}
			if err := json.Unmarshal(m.Payload, door); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
		}
	}
	if door == nil {
		t.Fatal("door discovery not found")
	}
	if door.DeviceClass != "door" {
		t.Errorf("device_class = %q, want door", door.DeviceClass)
	}
	if door.PayloadOn != "ON" || door.PayloadOff != "OFF" {
		t.Errorf("payload on/off = %q/%q", door.PayloadOn, door.PayloadOff)
	}
	if door.ValueTemplate == "" {
		t.Error("door sensor needs a value_template over door_state")
	}
}

func TestMustJSON(t *testing.T) {
	result := mustJSON(map[string]string{"hello": "world"})
	var parsed map[string]string
	if err := json.Unmarshal(result, &parsed); err != nil {
		t.Fatalf("mustJSON output not valid JSON: %v", err)
	}
	if parsed["hello"] != "world" {
		t.Errorf("parsed value = %q", parsed["hello"])
	}
}
