package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"

	appLog "groupsched/internal/log"
	"groupsched/internal/model"
)

// FetchState is the coordinator's admission state.
type FetchState int

const (
	Idle FetchState = iota
	Fetching
)

func (s FetchState) String() string {
	if s == Fetching {
		return "fetching"
	}
	return "idle"
}

// Stats counts coordinator activity since the process started.
type Stats struct {
	NetworkCalls int `json:"network_calls"`
	CacheHits    int `json:"cache_hits"`
	Dropped      int `json:"dropped"`
	Failures     int `json:"failures"`
}

// session is the per-group-selection store: everything in it is discarded
// when the group changes.
type session struct {
	group   string
	entries []model.ScheduleEntry
	ranges  RangeCache
}

// Coordinator decides whether a requested interval needs a network call,
// issues at most one call at a time and merges the results into the
// session's accumulated entries.
type Coordinator struct {
	fetcher Fetcher
	key     KeyFunc

	mu         sync.Mutex
	sess       *session
	generation uint64
	state      FetchState
	cancel     context.CancelFunc
	stats      Stats
}

// NewCoordinator creates a coordinator with no group selected.
func NewCoordinator(f Fetcher, key KeyFunc) *Coordinator {
	if key == nil {
		key = KeyDateTimeCourse
	}
	return &Coordinator{fetcher: f, key: key}
}

// SelectGroup starts a fresh session for group. Any request still running
// for the previous session is canceled and its result will be discarded.
// Selecting the same group again also starts over.
func (c *Coordinator) SelectGroup(group string) error {
	if group == "" {
		return ErrEmptyGroup
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Idle
	c.sess = &session{group: group}
	appLog.Debug("schedule session started", "group", group, "generation", c.generation)
	return nil
}

// ClearGroup drops the session without starting a new one.
func (c *Coordinator) ClearGroup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Idle
	c.sess = nil
}

// Group returns the selected group, or "" if none.
func (c *Coordinator) Group() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.group
}

func (c *Coordinator) State() FetchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Covered reports whether iv is already loaded for the current session.
func (c *Coordinator) Covered(iv model.Interval) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.ranges.IsCovered(iv)
}

// LoadedRanges returns a copy of the session's recorded intervals.
func (c *Coordinator) LoadedRanges() []model.Interval {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return c.sess.ranges.Ranges()
}

// Entries returns a copy of every accumulated entry, in merge order.
func (c *Coordinator) Entries() []model.ScheduleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	out := make([]model.ScheduleEntry, len(c.sess.entries))
	copy(out, c.sess.entries)
	return out
}

// EntriesIn returns accumulated entries whose date lies in iv.
func (c *Coordinator) EntriesIn(iv model.Interval) []model.ScheduleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil
	}
	return FilterInterval(c.sess.entries, iv)
}

// RequestRange makes sure iv is loaded for group and returns the entries
// that fall inside it.
//
//   - while another request is running it returns ErrInFlight at once
//   - a covered interval is answered from memory
//   - otherwise exactly one Fetch is issued for the whole interval
//
// The session is mutated only on success or an empty-range answer; failed
// fetches leave entries and loaded ranges untouched so the caller can retry.
func (c *Coordinator) RequestRange(ctx context.Context, group string, iv model.Interval) ([]model.ScheduleEntry, error) {
	if group == "" {
		return nil, ErrEmptyGroup
	}
	if err := iv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, err)
	}

	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return nil, ErrNoGroup
	}
	if c.sess.group != group {
		c.mu.Unlock()
		return nil, ErrGroupMismatch
	}
	if c.state == Fetching {
		c.stats.Dropped++
		c.mu.Unlock()
		appLog.Debug("schedule request dropped; fetch in flight", "group", group, "range", iv.String())
		return nil, ErrInFlight
	}
	if c.sess.ranges.IsCovered(iv) {
		c.stats.CacheHits++
		out := FilterInterval(c.sess.entries, iv)
		c.mu.Unlock()
		return out, nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	gen := c.generation
	c.state = Fetching
	c.cancel = cancel
	c.stats.NetworkCalls++
	c.mu.Unlock()

	fetched, err := c.fetcher.Fetch(fetchCtx, group, iv)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// The session this request belonged to is gone; the new session has
		// its own state and must not be touched.
		appLog.Info("schedule response discarded; group changed", "group", group, "range", iv.String())
		return nil, ErrStale
	}
	c.state = Idle
	c.cancel = nil

	switch {
	case err == nil:
		c.sess.entries = Merge(c.sess.entries, fetched, c.key)
	case errors.Is(err, ErrEmptyRange):
		// Loaded, just nothing in it.
	default:
		c.stats.Failures++
		return nil, err
	}
	c.sess.ranges.Record(iv)
	return FilterInterval(c.sess.entries, iv), nil
}
