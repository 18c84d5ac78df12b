// Package lockwire holds the wire-format knowledge for WLCKG1 status frames:
// the fixed field layout, the trigger and composite-state code tables, and
// the operator-tunable code assignments.
package lockwire

// Field offsets within a status frame. The 5-byte transport header is
// already stripped before a buffer reaches this package, so offsets are
// relative to the manufacturer payload.
const (
	OffsetCounter   = 9  // wrapping 8-bit sequence counter
	OffsetEventType = 13 // trigger classification code
	OffsetState     = 14 // composite lock+door state code
)

// Observed valid frame length bounds, inclusive. Empirical, not declared by
// the protocol: shorter buffers are partial reads, longer ones are unrelated
// cluster traffic reaching the same handler.
const (
	DefaultMinFrameLen = 70
	DefaultMaxFrameLen = 90
)

// Fields are the three raw values a status frame carries.
type Fields struct {
	Counter   uint8
	EventType uint8
	State     uint8
}

// ExtractFields reads the three fixed offsets from a buffer that has already
// passed the length check. Pure read, no validation of its own.
func ExtractFields(buf []byte) Fields {
	return Fields{
		Counter:   buf[OffsetCounter],
		EventType: buf[OffsetEventType],
		State:     buf[OffsetState],
	}
}
