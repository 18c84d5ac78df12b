package store

import "time"

// DeviceState is the merged last-known state of one lock, as consumers see
// it. Fields an event did not re-assert keep their previous values, so a
// lock-only frame never wipes the known door position.
type DeviceState struct {
	Device      string    `json:"device"`
	LockState   string    `json:"lock_state,omitempty"`
	DoorState   string    `json:"door_state,omitempty"`
	Contact     *bool     `json:"contact,omitempty"`
	LastAction  string    `json:"last_action,omitempty"`
	LastCounter uint8     `json:"last_counter"`
	LastSeen    time.Time `json:"last_seen"`
	EventCount  uint64    `json:"event_count"`
}

// EventRecord is one journaled decoded event.
type EventRecord struct {
	Device    string    `json:"device"`
	Counter   uint8     `json:"counter"`
	State     string    `json:"state,omitempty"`
	LockState string    `json:"lock_state,omitempty"`
	Action    string    `json:"action,omitempty"`
	DoorState string    `json:"door_state,omitempty"`
	Contact   *bool     `json:"contact,omitempty"`
	At        time.Time `json:"at"`
}
