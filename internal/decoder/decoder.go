// Package decoder turns raw WLCKG1 status frames into a deduplicated,
// de-staled stream of lock and door events. The lock retransmits frames
// aggressively and without ordering guarantees, so most of the work here is
// deciding which frames not to believe.
package decoder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
)

// Decoder owns the per-device filter state and the lookup tables built from
// the configured codes. Construct one per process and feed it every frame.
// Not safe for concurrent use; callers serialize, at minimum per device.
type Decoder struct {
	opts   Options
	states map[uint8]lockwire.StateInfo
	doors  map[uint8]lockwire.DoorEvent

	seq   map[string]*deviceSeq
	stale map[string]*deviceStale

	logger *slog.Logger
}

// New validates opts and builds a Decoder with its lookup tables constructed
// once, up front. No table work happens on the decode path.
func New(opts Options, logger *slog.Logger) (*Decoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("decoder options: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		opts:   opts,
		states: opts.Codes.StateTable(),
		doors:  opts.Codes.DoorTable(),
		seq:    make(map[string]*deviceSeq),
		stale:  make(map[string]*deviceStale),
		logger: logger.With("component", "decoder"),
	}, nil
}

// Decode runs one frame through the pipeline: length check, field
// extraction, dedup, staleness, classification. A nil event means the frame
// produced no publishable change; the outcome says why. Decode never panics
// or errors on garbage input.
func (d *Decoder) Decode(device string, raw []byte, now time.Time) (*Event, Outcome) {
	if len(raw) < d.opts.MinFrameLen || len(raw) > d.opts.MaxFrameLen {
		d.logger.Debug("frame length out of range", "device", device, "len", len(raw))
		return nil, OutcomeBadLength
	}
	f := lockwire.ExtractFields(raw)

	if !d.acceptCounter(device, f.Counter) {
		d.logger.Debug("duplicate frame dropped",
			"device", device, "counter", f.Counter)
		return nil, OutcomeDuplicate
	}

	// Only the unreliable-unlocked state is ever re-sent long after the
	// fact by the lock's retransmission queue; other states skip the
	// staleness check entirely.
	if f.State == d.opts.Codes.StateUnlocked && d.isStale(device, f.Counter, now) {
		d.logger.Warn("stale unlock frame dropped",
			"device", device, "counter", f.Counter, "code", f.State)
		return nil, OutcomeStale
	}
	d.markProcessed(device, f.Counter, now)

	return d.classify(device, f)
}

// classify maps the extracted fields to a semantic event. The lock-trigger
// and door-motion checks run independently; their code spaces are disjoint
// on current firmware, but nothing here relies on that staying true.
func (d *Decoder) classify(device string, f lockwire.Fields) (*Event, Outcome) {
	evt := &Event{Device: device, Counter: f.Counter}
	populated := false

	if action, ok := d.opts.Codes.TriggerAction(f.EventType); ok {
		info, known := d.states[f.State]
		if !known {
			d.logger.Warn("unknown composite state code",
				"device", device, "counter", f.Counter,
				"event_type", f.EventType, "code", f.State)
			return nil, OutcomeUnknownState
		}
		if !info.Confirmed {
			d.logger.Warn("unconfirmed state mapping, emitting best guess",
				"device", device, "counter", f.Counter, "code", f.State)
		}
		if info.Locked {
			evt.State = CommandLock
			evt.LockState = Locked
		} else {
			evt.State = CommandUnlock
			evt.LockState = Unlocked
		}
		evt.Action = action
		if info.Door != lockwire.DoorNone {
			evt.DoorState = info.Door
			contact := info.Door == lockwire.DoorClosed
			evt.Contact = &contact
		}
		populated = true
	}

	if f.EventType == d.opts.Codes.EventDoor {
		de, known := d.doors[f.State]
		switch {
		case !known:
			d.logger.Warn("unknown door state code",
				"device", device, "counter", f.Counter, "code", f.State)
			return nil, OutcomeUnknownState
		case de.AtRest:
			d.logger.Debug("door motion at rest, no change",
				"device", device, "counter", f.Counter)
			if !populated {
				return nil, OutcomeNoChange
			}
		default:
			evt.DoorState = de.Door
			contact := de.Door == lockwire.DoorClosed
			evt.Contact = &contact
			if de.UnlockedHint {
				// The companion unlock frame may have been dropped as
				// stale; the door-open code still proves the bolt state.
				evt.LockState = Unlocked
			}
			populated = true
		}
	}

	if !populated {
		d.logger.Warn("unknown event type code",
			"device", device, "counter", f.Counter,
			"event_type", f.EventType, "code", f.State)
		return nil, OutcomeUnknownEvent
	}

	d.logger.Debug("decoded event",
		"device", device, "counter", f.Counter,
		"event_type", f.EventType, "code", f.State)
	return evt, OutcomeAccepted
}
