package schedule

import "groupsched/internal/model"

// RangeCache records which date intervals have been loaded for the current
// group. It is not safe for concurrent use; the Coordinator guards it.
//
// A request is covered only when a single recorded interval contains it.
// Two recorded intervals that together span a request do not cover it, so
// the caller refetches the whole request rather than the missing part.
type RangeCache struct {
	ranges []model.Interval
}

// IsCovered reports whether some recorded interval fully contains iv.
func (c *RangeCache) IsCovered(iv model.Interval) bool {
	for _, r := range c.ranges {
		if r.Contains(iv) {
			return true
		}
	}
	return false
}

// Record adds iv. Intervals already inside iv are dropped and an iv that is
// already covered is not stored twice; neither changes IsCovered.
func (c *RangeCache) Record(iv model.Interval) {
	if c.IsCovered(iv) {
		return
	}
	kept := c.ranges[:0]
	for _, r := range c.ranges {
		if !iv.Contains(r) {
			kept = append(kept, r)
		}
	}
	c.ranges = append(kept, iv)
}

// Ranges returns a copy of the recorded intervals in insertion order.
func (c *RangeCache) Ranges() []model.Interval {
	out := make([]model.Interval, len(c.ranges))
	copy(out, c.ranges)
	return out
}

// Reset forgets everything; used when the group changes.
func (c *RangeCache) Reset() {
	c.ranges = nil
}
