package decoder

import "time"

// deviceStale is the per-device staleness record: the last counter and
// instant that passed both filters.
type deviceStale struct {
	counter uint8
	at      time.Time
}

// isStale reports whether a frame looks like a queued retransmission of an
// old event: too much wall time has passed for the number of counter steps
// taken since the last processed frame. No side effects here; markProcessed
// records acceptance separately so the dedup, staleness, update ordering
// stays under the pipeline's control.
func (d *Decoder) isStale(device string, incoming uint8, now time.Time) bool {
	s, ok := d.stale[device]
	if !ok {
		return false
	}

	timeDelta := now.Sub(s.at)
	if timeDelta > d.opts.StaleWake {
		// Long-idle device waking up, not backlog.
		return false
	}

	counterDelta := incoming - s.counter
	expectedMax := time.Duration(counterDelta) * d.opts.StalePerCount
	return timeDelta > expectedMax && timeDelta >= d.opts.StaleFloor
}

// markProcessed records that a frame passed both the dedup and the staleness
// filter. Called exactly once per such frame, never speculatively, so the
// next staleness comparison always measures against a genuinely processed
// event.
func (d *Decoder) markProcessed(device string, counter uint8, now time.Time) {
	s, ok := d.stale[device]
	if !ok {
		d.stale[device] = &deviceStale{counter: counter, at: now}
		return
	}
	s.counter = counter
	s.at = now
}
