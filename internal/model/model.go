package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without a time component. The zero value is not a
// valid date; use NewDate, DateOf or one of the parsers.
//
// Internally the date is kept as UTC midnight so that comparisons and day
// arithmetic never cross a DST boundary.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its components. Out-of-range values are
// normalized the same way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current date in loc (time.Local if nil).
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate accepts "2006-01-02" as well as ISO date-times such as
// "2024-03-10T00:00:00" or RFC3339; only the date part is kept.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) < len("2006-01-02") {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	t, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if len(s) > 10 && s[10] != 'T' && s[10] != ' ' {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return DateOf(t), nil
}

// ParseDotted parses the DD.MM.YYYY form used by the schedule service.
func ParseDotted(s string) (Date, error) {
	t, err := time.Parse("02.01.2006", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d.t.IsZero() }

func (d Date) Year() int { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Time returns midnight of d in loc (UTC if nil).
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// AddMonths moves by n months, clamping the day to the last day of the
// target month (31 Jan + 1 month = 29 Feb in a leap year).
func (d Date) AddMonths(n int) Date {
	first := NewDate(d.Year(), d.Month()+time.Month(n), 1)
	last := first.LastOfMonth()
	day := d.Day()
	if day > last.Day() {
		day = last.Day()
	}
	return NewDate(first.Year(), first.Month(), day)
}

func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), d.Month(), 1)
}

func (d Date) LastOfMonth() Date {
	return NewDate(d.Year(), d.Month()+1, 0)
}

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int { return d.t.Compare(o.t) }

// String renders the ISO form, which is also the form used as a map key
// throughout the views.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format("2006-01-02")
}

// Dotted renders DD.MM.YYYY, zero padded.
func (d Date) Dotted() string {
	return d.t.Format("02.01.2006")
}

// MonthKey renders MM-YYYY, used to key per-month state.
func (d Date) MonthKey() string {
	return d.t.Format("01-2006")
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a time of day in seconds since midnight.
type Clock int

// ParseClock accepts HH:MM and HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	var layout string
	switch len(s) {
	case 5:
		layout = "15:04"
	case 8:
		layout = "15:04:05"
	default:
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
}

func (c Clock) Hour() int   { return int(c) / 3600 }
func (c Clock) Minute() int { return int(c) % 3600 / 60 }

// String renders HH:MM; seconds are never shown.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ScheduleEntry is one scheduled class session.
type ScheduleEntry struct {
	Date       Date   `json:"date"`
	TimeStart  Clock  `json:"time_start"`
	TimeFinish Clock  `json:"time_finish"`
	CourseName string `json:"course_name"` // may embed "(Лекция)" and similar
	Teacher    string `json:"teacher"`
	Room       string `json:"room"`
	GroupName  string `json:"group_name"`
}

// At returns the start instant of the entry in loc.
func (e ScheduleEntry) At(loc *time.Location) time.Time {
	return e.Date.Time(loc).Add(time.Duration(e.TimeStart) * time.Second)
}

// Until returns the finish instant of the entry in loc.
func (e ScheduleEntry) Until(loc *time.Location) time.Time {
	return e.Date.Time(loc).Add(time.Duration(e.TimeFinish) * time.Second)
}

// Interval is a closed range [Start, End] of dates.
type Interval struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

var ErrInvertedInterval = errors.New("interval start is after end")

// NewInterval validates start <= end.
func NewInterval(start, end Date) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// SingleDay is the interval [d, d].
func SingleDay(d Date) Interval {
	return Interval{Start: d, End: d}
}

func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return errors.New("interval bound is unset")
	}
	if iv.Start.After(iv.End) {
		return ErrInvertedInterval
	}
	return nil
}

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return !other.Start.Before(iv.Start) && !other.End.After(iv.End)
}

func (iv Interval) ContainsDate(d Date) bool {
	return !d.Before(iv.Start) && !d.After(iv.End)
}

// Days returns the number of dates in the interval.
func (iv Interval) Days() int {
	return int(iv.End.t.Sub(iv.Start.t).Hours()/24) + 1
}

func (iv Interval) String() string {
	return iv.Start.Dotted() + "-" + iv.End.Dotted()
}

// ViewMode selects between the day table and the month calendar.
type ViewMode string

const (
	ViewTable    ViewMode = "table"
	ViewCalendar ViewMode = "calendar"
)

// ParseViewMode maps unknown values to an error; empty means table.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewTable, "":
		return ViewTable, nil
	case ViewCalendar:
		return ViewCalendar, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

// Toggle flips between the two modes.
func (m ViewMode) Toggle() ViewMode {
	if m == ViewCalendar {
		return ViewTable
	}
	return ViewCalendar
}

// NavigationState is what the user is currently looking at.
type NavigationState struct {
	Group  string   `json:"group"`
	Anchor Date     `json:"anchor"`
	Mode   ViewMode `json:"mode"`
}
