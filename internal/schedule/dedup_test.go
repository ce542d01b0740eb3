package schedule

import (
	"testing"

	"groupsched/internal/config"
	"groupsched/internal/model"
)

func TestMergeKeepsFirstPerKey(t *testing.T) {
	a := []model.ScheduleEntry{
		entry(t, "10.03.2024", "08:00", "09:30", "Математика (Лекция)"),
		entry(t, "10.03.2024", "09:40", "11:10", "Физика (Лекция)"),
	}
	dupe := entry(t, "10.03.2024", "08:00:00", "09:30", "Математика (Лекция)")
	dupe.Room = "999"
	b := []model.ScheduleEntry{
		dupe,
		entry(t, "11.03.2024", "08:00", "09:30", "Химия (лабораторная работа)"),
	}

	got := Merge(a, b, KeyDateTimeCourse)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(got), got)
	}
	if got[0].Room != "301" {
		t.Errorf("first occurrence should win, got room %q", got[0].Room)
	}
	if got[2].CourseName != "Химия (лабораторная работа)" {
		t.Errorf("order not preserved: %+v", got)
	}

	seen := map[string]bool{}
	for _, e := range got {
		k := KeyDateTimeCourse(e)
		if seen[k] {
			t.Fatalf("duplicate key %s in output", k)
		}
		seen[k] = true
	}
	for _, e := range a {
		if !seen[KeyDateTimeCourse(e)] {
			t.Errorf("entry from existing list missing: %+v", e)
		}
	}
}

func TestMergeDateTimeKeyCollapsesSlot(t *testing.T) {
	a := []model.ScheduleEntry{entry(t, "10.03.2024", "08:00", "09:30", "Математика (Лекция)")}
	b := []model.ScheduleEntry{entry(t, "10.03.2024", "08:00", "09:30", "Физика (Лекция)")}

	if got := Merge(a, b, KeyFor(config.DedupDateTimeCourse)); len(got) != 2 {
		t.Errorf("date+time+course keeps both courses, got %d", len(got))
	}
	got := Merge(a, b, KeyFor(config.DedupDateTime))
	if len(got) != 1 || got[0].CourseName != "Математика (Лекция)" {
		t.Errorf("date+time collapses to the first course, got %+v", got)
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	a := make([]model.ScheduleEntry, 1, 4)
	a[0] = entry(t, "10.03.2024", "08:00", "09:30", "A")
	_ = Merge(a, []model.ScheduleEntry{entry(t, "10.03.2024", "09:40", "11:10", "B")}, nil)
	if len(a) != 1 || a[:2][1].CourseName != "" {
		t.Fatal("Merge must not write into the existing slice")
	}
}

func TestSortAndFilter(t *testing.T) {
	list := []model.ScheduleEntry{
		entry(t, "12.03.2024", "08:00", "09:30", "C"),
		entry(t, "10.03.2024", "11:20", "12:50", "B"),
		entry(t, "10.03.2024", "08:00", "09:30", "A"),
	}
	SortChronological(list)
	if list[0].CourseName != "A" || list[1].CourseName != "B" || list[2].CourseName != "C" {
		t.Fatalf("unexpected order: %v %v %v", list[0].CourseName, list[1].CourseName, list[2].CourseName)
	}
	if n := len(ForDate(list, d(t, "10.03.2024"))); n != 2 {
		t.Errorf("ForDate = %d entries, want 2", n)
	}
	if n := len(FilterInterval(list, iv(t, "11.03.2024", "31.03.2024"))); n != 1 {
		t.Errorf("FilterInterval = %d entries, want 1", n)
	}
}
