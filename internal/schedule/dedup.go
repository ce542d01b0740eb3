package schedule

import (
	"fmt"
	"sort"

	"groupsched/internal/config"
	"groupsched/internal/model"
)

// KeyFunc derives the identity of an entry for de-duplication.
type KeyFunc func(model.ScheduleEntry) string

// KeyDateTimeCourse identifies entries by (date, timeStart, courseName).
func KeyDateTimeCourse(e model.ScheduleEntry) string {
	return fmt.Sprintf("%s|%d|%s", e.Date, e.TimeStart, e.CourseName)
}

// KeyDateTime identifies entries by (date, timeStart) only: two different
// courses in the same slot collapse into the first one seen.
func KeyDateTime(e model.ScheduleEntry) string {
	return fmt.Sprintf("%s|%d", e.Date, e.TimeStart)
}

// KeyFor maps the dedup_key config value to a KeyFunc.
func KeyFor(name string) KeyFunc {
	if name == config.DedupDateTime {
		return KeyDateTime
	}
	return KeyDateTimeCourse
}

// Merge concatenates existing and incoming and keeps the first entry per key,
// preserving first-seen order. Inputs are not modified.
func Merge(existing, incoming []model.ScheduleEntry, key KeyFunc) []model.ScheduleEntry {
	if key == nil {
		key = KeyDateTimeCourse
	}
	out := make([]model.ScheduleEntry, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, list := range [][]model.ScheduleEntry{existing, incoming} {
		for _, e := range list {
			k := key(e)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// SortChronological orders entries by date, then start time, in place.
func SortChronological(entries []model.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := entries[i].Date.Compare(entries[j].Date); c != 0 {
			return c < 0
		}
		return entries[i].TimeStart < entries[j].TimeStart
	})
}

// FilterInterval returns the entries whose date lies in iv, in input order.
func FilterInterval(entries []model.ScheduleEntry, iv model.Interval) []model.ScheduleEntry {
	out := make([]model.ScheduleEntry, 0)
	for _, e := range entries {
		if iv.ContainsDate(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// ForDate returns the entries on d, in input order.
func ForDate(entries []model.ScheduleEntry, d model.Date) []model.ScheduleEntry {
	return FilterInterval(entries, model.SingleDay(d))
}
