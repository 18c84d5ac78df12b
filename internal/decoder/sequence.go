package decoder

// deviceSeq is the per-device dedup record: the highest counter accepted
// under the wraparound comparison.
type deviceSeq struct {
	highWater uint8
}

// acceptCounter applies the wrapping half-window comparison against the
// device's high-water mark. The first frame ever seen from a device is never
// a duplicate. Accepting advances the mark; dropping leaves it untouched.
func (d *Decoder) acceptCounter(device string, incoming uint8) bool {
	s, ok := d.seq[device]
	if !ok {
		d.seq[device] = &deviceSeq{highWater: incoming}
		return true
	}

	// diff is (highWater - incoming) mod 256. Behind or equal lands in
	// [0, window); ahead, including a legitimate wrap past zero, lands in
	// [window, 255].
	diff := s.highWater - incoming
	if diff < d.opts.DedupWindow {
		return false
	}
	s.highWater = incoming
	return true
}
