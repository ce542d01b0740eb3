package schedule

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"groupsched/internal/model"
)

func newNavigator(t *testing.T, f *fakeFetcher, st model.NavigationState) (*Navigator, *memStore) {
	t.Helper()
	store := &memStore{st: st}
	nav := NewNavigator(NewCoordinator(f, KeyDateTimeCourse), DefaultPolicy, store, time.UTC)
	if err := nav.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return nav, store
}

func TestDayStepInsideLoadedRangeMakesNoCall(t *testing.T) {
	f := &fakeFetcher{data: marchData(t)}
	nav, _ := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "10.03.2024"), Mode: model.ViewTable})

	if n := len(f.Calls()); n != 1 {
		t.Fatalf("restore should load once, calls=%d", n)
	}
	nav.Step(context.Background(), StepDay, 1)

	if n := len(f.Calls()); n != 1 {
		t.Fatalf("stepping to a loaded day should not fetch, calls=%d", n)
	}
	v := nav.View()
	if v.State.Anchor != d(t, "11.03.2024") {
		t.Fatalf("anchor = %s", v.State.Anchor)
	}
	if len(v.Entries) != 1 || v.Entries[0].CourseName != "Физика (Лекция)" {
		t.Fatalf("table should show cached entries for 11.03, got %+v", v.Entries)
	}
}

func TestDayStepOutsideLoadedRangeFetchesWindow(t *testing.T) {
	f := &fakeFetcher{data: marchData(t)}
	nav, _ := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "10.03.2024"), Mode: model.ViewTable})

	nav.GoTo(context.Background(), d(t, "20.03.2024"))
	calls := f.Calls()
	if len(calls) != 2 || calls[1] != iv(t, "17.03.2024", "23.03.2024") {
		t.Fatalf("calls = %v", calls)
	}
}

func TestToggleToCalendarLoadsMonthOnce(t *testing.T) {
	f := &fakeFetcher{data: marchData(t)}
	nav, store := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "15.03.2024"), Mode: model.ViewTable})
	before := len(f.Calls())

	if mode := nav.Toggle(context.Background()); mode != model.ViewCalendar {
		t.Fatalf("mode = %s", mode)
	}
	calls := f.Calls()[before:]
	if len(calls) != 1 || calls[0] != iv(t, "01.03.2024", "31.03.2024") {
		t.Fatalf("calls after toggle = %v, want one for the month", calls)
	}
	if store.st.Mode != model.ViewCalendar {
		t.Fatal("view mode should be persisted")
	}

	// Back to the table: every day of March is loaded now.
	nav.Toggle(context.Background())
	nav.Step(context.Background(), StepDay, 10)
	if n := len(f.Calls()); n != before+1 {
		t.Fatalf("no further calls expected inside March, calls=%d", n)
	}
}

func TestCalendarMonthShowsOnlyThatMonth(t *testing.T) {
	f := &fakeFetcher{data: []model.ScheduleEntry{
		entry(t, "05.03.2024", "08:00", "09:30", "A"),
		entry(t, "05.03.2024", "09:40", "11:10", "B"),
		entry(t, "05.03.2024", "11:20", "12:50", "C"),
	}}
	nav, _ := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "15.03.2024"), Mode: model.ViewCalendar})

	v := nav.View()
	if v.Visible != iv(t, "01.03.2024", "31.03.2024") {
		t.Fatalf("visible = %s", v.Visible)
	}
	if len(v.Entries) != 3 {
		t.Fatalf("entries = %d", len(v.Entries))
	}
}

func TestSelectGroupResetsCacheButKeepsAnchor(t *testing.T) {
	f := &fakeFetcher{data: marchData(t)}
	nav, store := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "10.03.2024"), Mode: model.ViewTable})

	if err := nav.SelectGroup(context.Background(), "  а-202 "); err != nil {
		t.Fatal(err)
	}
	st := nav.State()
	if st.Group != "А-202" {
		t.Fatalf("group = %q, want normalized А-202", st.Group)
	}
	if st.Anchor != d(t, "10.03.2024") {
		t.Fatalf("anchor should survive a group change, got %s", st.Anchor)
	}
	if store.st.Group != "А-202" {
		t.Fatal("group should be persisted")
	}
	if n := len(f.Calls()); n != 2 {
		t.Fatalf("new group should fetch again, calls=%d", n)
	}
	if err := nav.SelectGroup(context.Background(), "   "); !errors.Is(err, ErrEmptyGroup) {
		t.Fatalf("blank group: %v", err)
	}
}

func TestLoadFailureSurfacesMessageAndRetries(t *testing.T) {
	f := &fakeFetcher{
		data: marchData(t),
		errs: []error{networkFailure(errors.New("connection refused"))},
	}
	nav, _ := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "10.03.2024"), Mode: model.ViewTable})

	v := nav.View()
	if !strings.HasPrefix(v.Error, "failed to load schedule: ") {
		t.Fatalf("error message = %q", v.Error)
	}
	if len(v.Loaded) != 0 {
		t.Fatal("failed load must not be recorded")
	}

	// Navigating again retries and clears the message.
	nav.Step(context.Background(), StepDay, 0)
	v = nav.View()
	if v.Error != "" || len(v.Entries) != 1 {
		t.Fatalf("retry view = %+v", v)
	}
}

func TestReloadStartsOver(t *testing.T) {
	f := &fakeFetcher{data: marchData(t)}
	nav, _ := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "10.03.2024"), Mode: model.ViewCalendar})

	if err := nav.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(f.Calls()); n != 2 {
		t.Fatalf("reload should fetch again, calls=%d", n)
	}

	nav.ChangeGroup()
	if err := nav.Reload(context.Background()); !errors.Is(err, ErrNoGroup) {
		t.Fatalf("reload without group: %v", err)
	}
}

func TestRestoreWithoutGroupDoesNothing(t *testing.T) {
	f := &fakeFetcher{}
	nav, _ := newNavigator(t, f, model.NavigationState{})
	st := nav.State()
	if st.Mode != model.ViewTable || st.Anchor.IsZero() {
		t.Fatalf("defaults not applied: %+v", st)
	}
	if len(f.Calls()) != 0 {
		t.Fatal("no group, no fetch")
	}
}

func TestChangeGroupKeepsSavedGroupAcrossNavigation(t *testing.T) {
	f := &fakeFetcher{data: marchData(t)}
	nav, store := newNavigator(t, f, model.NavigationState{Group: "Б-101", Anchor: d(t, "10.03.2024"), Mode: model.ViewTable})
	ctx := context.Background()

	nav.ChangeGroup()
	nav.GoTo(ctx, d(t, "12.03.2024"))
	nav.Step(ctx, StepDay, 1)
	nav.Toggle(ctx)

	if store.st.Group != "Б-101" {
		t.Fatalf("saved group = %q, want Б-101", store.st.Group)
	}
	if store.st.Anchor != d(t, "13.03.2024") || store.st.Mode != model.ViewCalendar {
		t.Fatalf("anchor and mode should still persist: %+v", store.st)
	}
	if nav.State().Group != "" {
		t.Fatalf("in-memory group = %q, want empty", nav.State().Group)
	}
	if n := len(f.Calls()); n != 1 {
		t.Fatalf("no fetch without a selected group, calls=%d", n)
	}

	// A restart restores the saved group.
	restarted := NewNavigator(NewCoordinator(f, KeyDateTimeCourse), DefaultPolicy, store, time.UTC)
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restarted.State().Group != "Б-101" {
		t.Fatalf("restored group = %q", restarted.State().Group)
	}
}
