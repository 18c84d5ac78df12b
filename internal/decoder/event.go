package decoder

import "github.com/chanronson/wlckg1-bridge/internal/lockwire"

// Command mirrors the convention lock integrations publish for the state
// attribute ("LOCK"/"UNLOCK").
type Command string

const (
	CommandLock   Command = "LOCK"
	CommandUnlock Command = "UNLOCK"
)

// LockState is the physical bolt position.
type LockState string

const (
	Locked   LockState = "locked"
	Unlocked LockState = "unlocked"
)

// Event is one decoded, deduplicated state transition. Optional fields are
// empty (or nil) when the frame did not assert them; consumers treat absence
// as "no change", never as a reset.
type Event struct {
	// Device and Counter identify the frame for downstream consumers and
	// diagnostics; they are not part of the published payload.
	Device  string `json:"-"`
	Counter uint8  `json:"-"`

	State     Command               `json:"state,omitempty"`
	LockState LockState             `json:"lock_state,omitempty"`
	Action    lockwire.Action       `json:"action,omitempty"`
	DoorState lockwire.DoorPosition `json:"door_state,omitempty"`
	Contact   *bool                 `json:"contact,omitempty"`
}

// Outcome reports what Decode did with a frame. Every outcome except
// OutcomeAccepted means no event was produced.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeBadLength
	OutcomeDuplicate
	OutcomeStale
	OutcomeNoChange
	OutcomeUnknownState
	OutcomeUnknownEvent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeBadLength:
		return "bad_length"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeStale:
		return "stale"
	case OutcomeNoChange:
		return "no_change"
	case OutcomeUnknownState:
		return "unknown_state"
	case OutcomeUnknownEvent:
		return "unknown_event"
	}
	return "invalid"
}
