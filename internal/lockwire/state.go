package lockwire

// DoorPosition is the door half of a composite state. DoorNone means the
// frame does not re-assert the door position and the previously known
// position stays valid. That is a deliberate non-update, not an unknown.
type DoorPosition string

const (
	DoorNone   DoorPosition = ""
	DoorOpen   DoorPosition = "open"
	DoorClosed DoorPosition = "closed"
)

// StateInfo is the decoded meaning of one composite-state code under a lock
// trigger.
type StateInfo struct {
	Locked    bool
	Door      DoorPosition
	Confirmed bool // false: mapping not yet validated against real hardware
}

// DoorEvent describes what a door-motion frame reports.
type DoorEvent struct {
	Door         DoorPosition
	UnlockedHint bool // the code also encodes unlocked; used to correct lock_state
	AtRest       bool // locked at rest, nothing changed
}

// StateTable builds the composite-state lookup used under lock triggers.
// The table is total only over these six keys; any other code is unknown
// and must never be guessed at.
func (c Codes) StateTable() map[uint8]StateInfo {
	return map[uint8]StateInfo{
		c.StateLocked:     {Locked: true, Door: DoorNone, Confirmed: true},
		StateLockedClosed: {Locked: true, Door: DoorClosed, Confirmed: true},
		StateLockedOpen:   {Locked: true, Door: DoorOpen, Confirmed: false},
		c.StateUnlocked:   {Locked: false, Door: DoorNone, Confirmed: true},
		c.StateDoorClosed: {Locked: false, Door: DoorClosed, Confirmed: true},
		c.StateDoorOpen:   {Locked: false, Door: DoorOpen, Confirmed: true},
	}
}

// DoorTable builds the composite-state lookup used under the door-motion
// trigger.
func (c Codes) DoorTable() map[uint8]DoorEvent {
	return map[uint8]DoorEvent{
		c.StateDoorClosed: {Door: DoorClosed},
		StateLockedClosed: {Door: DoorClosed},
		c.StateDoorOpen:   {Door: DoorOpen, UnlockedHint: true},
		StateLockedOpen:   {Door: DoorOpen},
		c.StateLocked:     {AtRest: true},
	}
}
