package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"groupsched/internal/model"
)

// fakeFetcher records every call and answers from a fixed data set or a
// queued error.
type fakeFetcher struct {
	mu    sync.Mutex
	calls []model.Interval
	data  []model.ScheduleEntry
	errs  []error // consumed one per call; nil entries mean success

	// block, when set, makes Fetch wait until it is closed or ctx ends.
	block   chan struct{}
	started chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, group string, iv model.Interval) ([]model.ScheduleEntry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, iv)
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, networkFailure(ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	return FilterInterval(f.data, iv), nil
}

func (f *fakeFetcher) Calls() []model.Interval {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Interval, len(f.calls))
	copy(out, f.calls)
	return out
}

// memStore is an in-memory StateStore.
type memStore struct {
	mu    sync.Mutex
	st    model.NavigationState
	saves int
}

func (m *memStore) LoadNavigation(context.Context) (model.NavigationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, nil
}

func (m *memStore) SaveNavigation(_ context.Context, st model.NavigationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	m.saves++
	return nil
}

func d(t *testing.T, s string) model.Date {
	t.Helper()
	date, err := model.ParseDotted(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return date
}

func iv(t *testing.T, start, end string) model.Interval {
	t.Helper()
	out, err := model.NewInterval(d(t, start), d(t, end))
	if err != nil {
		t.Fatalf("bad interval: %v", err)
	}
	return out
}

func entry(t *testing.T, date, start, finish, name string) model.ScheduleEntry {
	t.Helper()
	s, err := model.ParseClock(start)
	if err != nil {
		t.Fatal(err)
	}
	f, err := model.ParseClock(finish)
	if err != nil {
		t.Fatal(err)
	}
	return model.ScheduleEntry{
		Date:       d(t, date),
		TimeStart:  s,
		TimeFinish: f,
		CourseName: name,
		Teacher:    "Иванов И.И.",
		Room:       "301",
		GroupName:  "Б-101",
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch to start")
	}
}
