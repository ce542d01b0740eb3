package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	appLog "groupsched/internal/log"
	"groupsched/internal/model"
)

// StateStore persists the navigation state between restarts.
type StateStore interface {
	LoadNavigation(ctx context.Context) (model.NavigationState, error)
	SaveNavigation(ctx context.Context, st model.NavigationState) error
}

// View is a snapshot of what the UI should render.
type View struct {
	State   model.NavigationState `json:"state"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
	// Visible is the anchor day in table mode, the anchor month in calendar mode.
	Visible model.Interval        `json:"visible"`
	Entries []model.ScheduleEntry `json:"entries"`
	Loaded  []model.Interval      `json:"loaded_ranges"`
	Stats   Stats                 `json:"stats"`
}

// Navigator drives one browsing session: it owns the anchor date and view
// mode, persists them, and asks the Coordinator for whatever the current view
// needs.
type Navigator struct {
	coord  *Coordinator
	policy Policy
	store  StateStore
	loc    *time.Location

	mu      sync.Mutex
	state   model.NavigationState
	lastErr string
	// saved is the group last written to the store. It outlives ChangeGroup.
	saved string
}

// NewNavigator wires a navigator. store may be nil, in which case nothing is
// persisted.
func NewNavigator(coord *Coordinator, policy Policy, store StateStore, loc *time.Location) *Navigator {
	if loc == nil {
		loc = time.Local
	}
	return &Navigator{
		coord:  coord,
		policy: policy.normalized(),
		store:  store,
		loc:    loc,
		state: model.NavigationState{
			Anchor: model.Today(loc),
			Mode:   model.ViewTable,
		},
	}
}

// Restore loads the persisted state and, if a group was saved, loads the
// current view for it.
func (n *Navigator) Restore(ctx context.Context) error {
	if n.store == nil {
		return nil
	}
	saved, err := n.store.LoadNavigation(ctx)
	if err != nil {
		return err
	}

	n.mu.Lock()
	if saved.Anchor.IsZero() {
		saved.Anchor = model.Today(n.loc)
	}
	if saved.Mode == "" {
		saved.Mode = model.ViewTable
	}
	n.state = saved
	n.saved = saved.Group
	n.mu.Unlock()

	if saved.Group == "" {
		return nil
	}
	if err := n.coord.SelectGroup(saved.Group); err != nil {
		return err
	}
	appLog.Info("session restored", "group", saved.Group, "mode", saved.Mode, "anchor", saved.Anchor.String())
	n.load(ctx)
	return nil
}

// SelectGroup normalizes raw, starts a new session for it and loads the
// current view. The anchor date and view mode are kept.
func (n *Navigator) SelectGroup(ctx context.Context, raw string) error {
	group := NormalizeGroup(raw)
	if group == "" {
		return ErrEmptyGroup
	}
	if err := n.coord.SelectGroup(group); err != nil {
		return err
	}
	n.mu.Lock()
	n.saved = group
	n.mu.Unlock()
	n.update(ctx, func(st *model.NavigationState) {
		st.Group = group
	})
	n.load(ctx)
	return nil
}

// ChangeGroup returns to group selection. The saved group stays in storage
// so a restart restores it.
func (n *Navigator) ChangeGroup() {
	n.coord.ClearGroup()
	n.mu.Lock()
	n.state.Group = ""
	n.lastErr = ""
	n.mu.Unlock()
}

// GoTo moves the anchor to d.
func (n *Navigator) GoTo(ctx context.Context, d model.Date) {
	n.update(ctx, func(st *model.NavigationState) {
		st.Anchor = d
	})
	n.load(ctx)
}

// Step moves the anchor by count units (negative goes back).
func (n *Navigator) Step(ctx context.Context, unit StepUnit, count int) {
	n.update(ctx, func(st *model.NavigationState) {
		st.Anchor = Step(st.Anchor, unit, count)
	})
	n.load(ctx)
}

// Toggle switches between table and calendar.
func (n *Navigator) Toggle(ctx context.Context) model.ViewMode {
	var mode model.ViewMode
	n.update(ctx, func(st *model.NavigationState) {
		st.Mode = st.Mode.Toggle()
		mode = st.Mode
	})
	n.load(ctx)
	return mode
}

// SetMode switches to mode; a no-op switch still makes sure the view is loaded.
func (n *Navigator) SetMode(ctx context.Context, mode model.ViewMode) {
	n.update(ctx, func(st *model.NavigationState) {
		st.Mode = mode
	})
	n.load(ctx)
}

// Reload discards the session for the current group and loads the view
// again, the same as reopening the page.
func (n *Navigator) Reload(ctx context.Context) error {
	group := n.State().Group
	if group == "" {
		return ErrNoGroup
	}
	if err := n.coord.SelectGroup(group); err != nil {
		return err
	}
	n.load(ctx)
	return nil
}

// State returns the current navigation state.
func (n *Navigator) State() model.NavigationState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// View returns what should be rendered right now. It never triggers a fetch.
func (n *Navigator) View() View {
	n.mu.Lock()
	st := n.state
	msg := n.lastErr
	n.mu.Unlock()

	visible := n.policy.VisibleRange(st.Mode, st.Anchor)
	entries := make([]model.ScheduleEntry, 0)
	if st.Group != "" {
		entries = n.coord.EntriesIn(visible)
		SortChronological(entries)
	}
	return View{
		State:   st,
		Loading: n.coord.State() == Fetching,
		Error:   msg,
		Visible: visible,
		Entries: entries,
		Loaded:  n.coord.LoadedRanges(),
		Stats:   n.coord.Stats(),
	}
}

// Policy returns the range policy in use.
func (n *Navigator) Policy() Policy { return n.policy }

// Location is the timezone used for "today".
func (n *Navigator) Location() *time.Location { return n.loc }

func (n *Navigator) update(ctx context.Context, fn func(st *model.NavigationState)) {
	n.mu.Lock()
	fn(&n.state)
	st := n.state
	if st.Group == "" {
		st.Group = n.saved
	}
	n.mu.Unlock()

	if n.store == nil {
		return
	}
	if err := n.store.SaveNavigation(ctx, st); err != nil {
		appLog.Error("failed to persist navigation state", err, "group", st.Group)
	}
}

// load requests whatever the current view needs. In table mode a day that
// already lies inside a loaded range needs nothing; otherwise the policy's
// range goes through the coordinator, which answers covered ranges from
// memory.
func (n *Navigator) load(ctx context.Context) {
	st := n.State()
	if st.Group == "" {
		return
	}
	if st.Mode == model.ViewTable && n.coord.Covered(model.SingleDay(st.Anchor)) {
		n.setErr("")
		return
	}

	iv := n.policy.RangeFor(st.Mode, st.Anchor)
	_, err := n.coord.RequestRange(ctx, st.Group, iv)
	switch {
	case err == nil:
		n.setErr("")
	case errors.Is(err, ErrInFlight), errors.Is(err, ErrStale):
		// Dropped or superseded; the next navigation retries.
	case errors.Is(err, ErrGroupMismatch), errors.Is(err, ErrNoGroup):
		// The group changed between reading the state and the request.
	default:
		appLog.Error("schedule load failed", err, "group", st.Group, "range", iv.String())
		n.setErr(UserMessage(err))
	}
}

func (n *Navigator) setErr(msg string) {
	n.mu.Lock()
	n.lastErr = msg
	n.mu.Unlock()
}
