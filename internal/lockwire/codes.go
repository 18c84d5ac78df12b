package lockwire

import "fmt"

// Action identifies the trigger that produced a lock event.
type Action string

const (
	ActionManual Action = "manual"
	ActionAuto   Action = "auto"
	ActionApp    Action = "app"
)

// Codes fixed across every firmware revision observed so far. These are not
// operator-tunable; the configurable assignments live in Codes.
const (
	// EventAppAlt is an alternate app-command code emitted by some firmware
	// builds alongside the primary one.
	EventAppAlt uint8 = 85 // 0x55

	// StateLockedClosed reports locked with the door confirmed closed.
	StateLockedClosed uint8 = 98 // 0x62

	// StateLockedOpen reports the thumbturn thrown with the door ajar.
	// Mapping inferred from limited captures, not yet confirmed on hardware.
	StateLockedOpen uint8 = 99 // 0x63
)

// Codes holds the operator-tunable 8-bit code assignments, one field per
// configuration option. Start from DefaultCodes and override individual
// fields to retarget a firmware revision with different encodings.
type Codes struct {
	EventManual uint8 // lock or unlock via thumbturn
	EventAuto   uint8 // lock via the auto-lock timer
	EventApp    uint8 // lock or unlock via app or remote
	EventDoor   uint8 // door motion only, no new lock trigger

	StateLocked     uint8 // locked, door position left as-is
	StateUnlocked   uint8 // unlocked, door position unreliable
	StateDoorClosed uint8 // unlocked, door closed
	StateDoorOpen   uint8 // unlocked, door open
}

// DefaultCodes returns the assignments observed on production WLCKG1
// firmware.
func DefaultCodes() Codes {
	return Codes{
		EventManual: 19,  // 0x13
		EventAuto:   20,  // 0x14
		EventApp:    21,  // 0x15
		EventDoor:   233, // 0xE9

		StateLocked:     96,  // 0x60
		StateUnlocked:   112, // 0x70
		StateDoorClosed: 114, // 0x72
		StateDoorOpen:   115, // 0x73
	}
}

// Validate rejects assignments that would make the lookup tables ambiguous.
// Error messages use the configuration option names.
func (c Codes) Validate() error {
	events := []struct {
		name string
		code uint8
	}{
		{"(fixed app alternate)", EventAppAlt},
		{"event_type_manual", c.EventManual},
		{"event_type_auto", c.EventAuto},
		{"event_type_app", c.EventApp},
		{"event_type_door", c.EventDoor},
	}
	seen := make(map[uint8]string, len(events))
	for _, e := range events {
		if prev, ok := seen[e.code]; ok {
			return fmt.Errorf("%s and %s share event code %d", prev, e.name, e.code)
		}
		seen[e.code] = e.name
	}

	states := []struct {
		name string
		code uint8
	}{
		{"(fixed locked+closed)", StateLockedClosed},
		{"(fixed locked+open)", StateLockedOpen},
		{"lock_locked_code", c.StateLocked},
		{"lock_unlocked_code", c.StateUnlocked},
		{"door_closed_code", c.StateDoorClosed},
		{"door_open_code", c.StateDoorOpen},
	}
	seen = make(map[uint8]string, len(states))
	for _, s := range states {
		if prev, ok := seen[s.code]; ok {
			return fmt.Errorf("%s and %s share state code %d", prev, s.name, s.code)
		}
		seen[s.code] = s.name
	}
	return nil
}

// TriggerAction maps an event-type code to the lock action it represents.
// The second return is false when the code is not a lock trigger.
func (c Codes) TriggerAction(code uint8) (Action, bool) {
	switch code {
	case c.EventManual:
		return ActionManual, true
	case c.EventAuto:
		return ActionAuto, true
	case c.EventApp, EventAppAlt:
		return ActionApp, true
	}
	return "", false
}
