package decoder

import (
	"testing"
	"time"

	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
)

func TestStaleUnlockDropped(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}

	// Three counter steps in 300s: expected_max is 180s and the floor is
	// met, so the unreliable-unlocked report is queued backlog.
	evt, out := d.Decode("A", statusFrame(13, 21, 112), t0.Add(300*time.Second))
	if evt != nil || out != OutcomeStale {
		t.Errorf("Decode = (%v, %v), want (nil, stale)", evt, out)
	}
}

func TestFreshUnlockAccepted(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}

	evt, out := d.Decode("A", statusFrame(13, 21, 112), t0.Add(30*time.Second))
	if out != OutcomeAccepted || evt == nil {
		t.Fatalf("Decode = (%v, %v), want accepted", evt, out)
	}
	if evt.State != CommandUnlock || evt.LockState != Unlocked || evt.Action != lockwire.ActionApp {
		t.Errorf("event = %+v, want UNLOCK/unlocked/app", evt)
	}
	if evt.DoorState != lockwire.DoorNone || evt.Contact != nil {
		t.Errorf("unreliable-unlocked asserted door fields %q/%v, want none", evt.DoorState, evt.Contact)
	}
}

func TestStaleFloorBoundary(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want Outcome
	}{
		{"just under the floor", 299 * time.Second, OutcomeAccepted},
		{"exactly the floor", 300 * time.Second, OutcomeStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t)
			if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
				t.Fatalf("baseline = %v, want accepted", out)
			}
			// One counter step, so expected_max (60s) is long exceeded
			// either way; the floor alone decides.
			_, out := d.Decode("A", statusFrame(11, 21, 112), t0.Add(tt.age))
			if out != tt.want {
				t.Errorf("age %v: outcome = %v, want %v", tt.age, out, tt.want)
			}
		})
	}
}

func TestStaleWakeValve(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}

	// Nine hours idle: over the wake valve, so the backlog heuristic does
	// not apply even though one step in nine hours is far past expected_max.
	evt, out := d.Decode("A", statusFrame(11, 21, 112), t0.Add(9*time.Hour))
	if out != OutcomeAccepted || evt == nil {
		t.Errorf("Decode = (%v, %v), want accepted", evt, out)
	}
}

func TestStaleOnlyForUnreliableUnlocked(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}

	// Identical counter/time relationship to a stale drop, but the state
	// is locked: not filtered.
	evt, out := d.Decode("A", statusFrame(13, 19, 96), t0.Add(300*time.Second))
	if out != OutcomeAccepted || evt == nil {
		t.Errorf("locked state = (%v, %v), want accepted", evt, out)
	}

	// Door-position states are not filtered either.
	evt, out = d.Decode("A", statusFrame(16, 21, 114), t0.Add(900*time.Second))
	if out != OutcomeAccepted || evt == nil {
		t.Errorf("door-closed state = (%v, %v), want accepted", evt, out)
	}
}

func TestStaleDropPreservesBaseline(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}
	if _, out := d.Decode("A", statusFrame(13, 21, 112), t0.Add(300*time.Second)); out != OutcomeStale {
		t.Fatalf("first backlog frame = %v, want stale", out)
	}

	// The stale drop must not have moved the baseline: measured from the t0
	// accept, four steps in 400s is still backlog. A baseline wrongly
	// advanced to the dropped frame would read this as fresh.
	evt, out := d.Decode("A", statusFrame(14, 21, 112), t0.Add(400*time.Second))
	if evt != nil || out != OutcomeStale {
		t.Errorf("Decode = (%v, %v), want (nil, stale)", evt, out)
	}
}

func TestStaleDropStillAdvancesHighWater(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}
	if _, out := d.Decode("A", statusFrame(13, 21, 112), t0.Add(300*time.Second)); out != OutcomeStale {
		t.Fatalf("backlog frame = %v, want stale", out)
	}

	// The dedup mark advanced when the frame was accepted as "ahead", so a
	// retransmission of the stale frame is a plain duplicate.
	_, out := d.Decode("A", statusFrame(13, 21, 112), t0.Add(310*time.Second))
	if out != OutcomeDuplicate {
		t.Errorf("retransmission = %v, want duplicate", out)
	}
}

func TestBackwardClockJumpAccepted(t *testing.T) {
	d := newTestDecoder(t)

	if _, out := d.Decode("A", statusFrame(10, 19, 96), t0); out != OutcomeAccepted {
		t.Fatalf("baseline = %v, want accepted", out)
	}

	// Clock stepped back an hour: a negative age can never exceed the
	// staleness thresholds, so the frame degrades to accepted.
	evt, out := d.Decode("A", statusFrame(11, 21, 112), t0.Add(-time.Hour))
	if out != OutcomeAccepted || evt == nil {
		t.Errorf("Decode = (%v, %v), want accepted", evt, out)
	}
}

func TestFirstUnlockHasNoBaseline(t *testing.T) {
	d := newTestDecoder(t)
	evt, out := d.Decode("A", statusFrame(10, 21, 112), t0)
	if out != OutcomeAccepted || evt == nil {
		t.Errorf("Decode = (%v, %v), want accepted", evt, out)
	}
}
