package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Device state operations
	SaveDeviceState(st *DeviceState) error
	GetDeviceState(device string) (*DeviceState, error)
	ListDeviceStates() ([]*DeviceState, error)

	// UpdateDeviceState atomically reads, modifies, and saves one device's
	// state in a single transaction. The callback receives a zero-valued
	// record (with Device set) when none exists yet.
	UpdateDeviceState(device string, fn func(st *DeviceState) error) error

	// Event journal
	AppendEvent(rec *EventRecord) error

	// RecentEvents returns up to limit journal entries for a device, newest
	// first. limit <= 0 returns everything retained.
	RecentEvents(device string, limit int) ([]*EventRecord, error)

	// Close the store
	Close() error
}
