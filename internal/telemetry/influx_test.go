package telemetry

import (
	"testing"
	"time"

	"github.com/chanronson/wlckg1-bridge/internal/bridge"
	"github.com/chanronson/wlckg1-bridge/internal/decoder"
	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
)

func TestLockPoint(t *testing.T) {
	contact := false
	evt := &decoder.Event{
		Device:    "lock-a",
		Counter:   73,
		State:     decoder.CommandUnlock,
		LockState: decoder.Unlocked,
		DoorState: lockwire.DoorOpen,
		Contact:   &contact,
	}

	p := lockPoint(evt, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	if p.Name() != "lock_event" {
		t.Errorf("measurement = %q, want lock_event", p.Name())
	}

	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["device"] != "lock-a" {
		t.Errorf("device tag = %q, want lock-a", tags["device"])
	}

	fields := make(map[string]interface{})
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["counter"] != int64(73) {
		t.Errorf("counter = %v, want 73", fields["counter"])
	}
	if fields["lock_state"] != "unlocked" {
		t.Errorf("lock_state = %v, want unlocked", fields["lock_state"])
	}
	if fields["door_state"] != "open" {
		t.Errorf("door_state = %v, want open", fields["door_state"])
	}
	if fields["contact"] != false {
		t.Errorf("contact = %v, want false", fields["contact"])
	}
	if _, ok := fields["action"]; ok {
		t.Error("action field should be absent for a door-only event")
	}
}

func TestDropPoint(t *testing.T) {
	d := bridge.Drop{
		Device:  "lock-a",
		Outcome: decoder.OutcomeStale,
		Len:     77,
		Counter: 14,
	}

	p := dropPoint(d, time.Now())

	if p.Name() != "frame_drop" {
		t.Errorf("measurement = %q, want frame_drop", p.Name())
	}
	tags := make(map[string]string)
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["outcome"] != "stale" {
		t.Errorf("outcome tag = %q, want stale", tags["outcome"])
	}
	fields := make(map[string]interface{})
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["counter"] != int64(14) || fields["frame_len"] != int64(77) {
		t.Errorf("fields = %v, want counter 14, frame_len 77", fields)
	}
}
