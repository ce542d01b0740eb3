package state

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"groupsched/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNavigationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	empty, err := s.LoadNavigation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Group != "" || empty.Mode != model.ViewTable || !empty.Anchor.IsZero() {
		t.Fatalf("fresh store should return defaults, got %+v", empty)
	}

	want := model.NavigationState{
		Group:  "Б-101",
		Anchor: model.NewDate(2024, time.March, 15),
		Mode:   model.ViewCalendar,
	}
	if err := s.SaveNavigation(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadNavigation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCorruptValuesAreIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_ = s.Set(ctx, KeyViewMode, "grid")
	_ = s.Set(ctx, KeyAnchorDate, "yesterday")

	got, err := s.LoadNavigation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != "" || !got.Anchor.IsZero() {
		t.Fatalf("corrupt values should be dropped, got %+v", got)
	}
}

func TestToggleMarker(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	march := model.NewDate(2024, time.March, 15)

	if _, err := s.ToggleMarker(ctx, "Б-101", march, 12); err != nil {
		t.Fatal(err)
	}
	days, err := s.ToggleMarker(ctx, "Б-101", march, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(days, []int{3, 12}) {
		t.Fatalf("days = %v", days)
	}

	days, _ = s.ToggleMarker(ctx, "Б-101", march, 12)
	if !reflect.DeepEqual(days, []int{3}) {
		t.Fatalf("second toggle should unmark, days = %v", days)
	}

	// Markers are per group and per month.
	other, _ := s.Markers(ctx, "А-202", march)
	april, _ := s.Markers(ctx, "Б-101", march.AddMonths(1))
	if len(other) != 0 || len(april) != 0 {
		t.Fatalf("markers leaked: other=%v april=%v", other, april)
	}

	if _, err := s.ToggleMarker(ctx, "Б-101", model.NewDate(2024, time.February, 1), 30); err == nil {
		t.Fatal("30 February should be rejected")
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "groupsched.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, KeySelectedGroup, "Б-101"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Get(ctx, KeySelectedGroup)
	if err != nil || !ok || v != "Б-101" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
}
