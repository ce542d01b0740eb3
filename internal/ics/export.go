package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	ical "github.com/arran4/golang-ical"

	"groupsched/internal/model"
	"groupsched/internal/schedule"
)

const productID = "-//groupsched//schedule export//RU"

// Export serializes entries as an iCalendar feed named after group. Entry
// times are interpreted in loc (time.Local if nil).
func Export(group string, entries []model.ScheduleEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Расписание " + group)
	cal.SetXWRTimezone(loc.String())

	stamp := time.Now().UTC()
	sorted := append([]model.ScheduleEntry(nil), entries...)
	schedule.SortChronological(sorted)

	for _, e := range sorted {
		ev := cal.AddEvent(EventUID(group, e))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(e.At(loc))
		ev.SetEndAt(e.Until(loc))
		ev.SetSummary(schedule.Subject(e.CourseName) + " (" + schedule.ClassType(e.CourseName) + ")")
		if e.Room != "" {
			ev.SetLocation(e.Room)
		}
		if e.Teacher != "" {
			ev.SetDescription(e.Teacher)
		}
	}
	return cal.Serialize()
}

// EventUID is stable for the same group, date, start time and course, so
// calendar clients update events instead of duplicating them.
func EventUID(group string, e model.ScheduleEntry) string {
	sum := sha256.Sum256([]byte(group + "|" + schedule.KeyDateTimeCourse(e)))
	return hex.EncodeToString(sum[:12]) + "@groupsched"
}
