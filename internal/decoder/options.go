package decoder

import (
	"fmt"
	"time"

	"github.com/chanronson/wlckg1-bridge/internal/lockwire"
)

// Options tunes the decoder. The filter thresholds are empirically derived
// from observed hardware behavior, not protocol guarantees; they may need
// adjustment for other firmware revisions.
type Options struct {
	// Codes are the wire code assignments.
	Codes lockwire.Codes

	// MinFrameLen and MaxFrameLen bound acceptable frame lengths, inclusive.
	MinFrameLen int
	MaxFrameLen int

	// DedupWindow is the half-window of the wrapping counter comparison: an
	// incoming counter behind the high-water mark by fewer than this many
	// steps is a duplicate. Assumes no more than DedupWindow-1 genuine
	// events are ever missed between two received frames.
	DedupWindow uint8

	// StalePerCount is the upper bound of elapsed time per counter step the
	// staleness filter allows before calling a frame a queued retransmission.
	// Observed retransmission cycles run 10-15s; 60s is deliberately loose.
	StalePerCount time.Duration

	// StaleFloor is the minimum age before any frame may be considered
	// stale. Inclusive: a frame aged exactly StaleFloor can be stale.
	StaleFloor time.Duration

	// StaleWake is the idle period after which a frame is treated as a
	// long-idle device waking up, never as backlog.
	StaleWake time.Duration
}

// DefaultOptions returns the tuning observed to work on production locks.
func DefaultOptions() Options {
	return Options{
		Codes:         lockwire.DefaultCodes(),
		MinFrameLen:   lockwire.DefaultMinFrameLen,
		MaxFrameLen:   lockwire.DefaultMaxFrameLen,
		DedupWindow:   128,
		StalePerCount: 60 * time.Second,
		StaleFloor:    5 * time.Minute,
		StaleWake:     2 * time.Hour,
	}
}

// Validate checks option consistency, including the code assignments.
func (o Options) Validate() error {
	if o.MinFrameLen <= 0 || o.MaxFrameLen < o.MinFrameLen {
		return fmt.Errorf("frame length bounds %d..%d invalid", o.MinFrameLen, o.MaxFrameLen)
	}
	if o.MinFrameLen <= lockwire.OffsetState {
		return fmt.Errorf("min frame length %d does not cover field offset %d",
			o.MinFrameLen, lockwire.OffsetState)
	}
	if o.DedupWindow == 0 {
		return fmt.Errorf("dedup window must be positive")
	}
	if o.StalePerCount <= 0 || o.StaleFloor <= 0 || o.StaleWake <= 0 {
		return fmt.Errorf("staleness durations must be positive")
	}
	if err := o.Codes.Validate(); err != nil {
		return fmt.Errorf("codes: %w", err)
	}
	return nil
}
