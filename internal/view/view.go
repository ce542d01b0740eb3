package view

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"groupsched/internal/model"
	"groupsched/internal/schedule"
)

const (
	NoSessionsDay   = "Нет пар"
	NoSessionsMonth = "На этот месяц пар нет"
)

// Session is one entry prepared for display.
type Session struct {
	Time    string `json:"time"` // "08:00 - 09:30"
	Room    string `json:"room"`
	Teacher string `json:"teacher"`
	Type    string `json:"type"`
	Subject string `json:"subject"`
}

func newSession(e model.ScheduleEntry) Session {
	return Session{
		Time:    e.TimeStart.String() + " - " + e.TimeFinish.String(),
		Room:    e.Room,
		Teacher: e.Teacher,
		Type:    schedule.ClassType(e.CourseName),
		Subject: schedule.Subject(e.CourseName),
	}
}

// Row is one pair slot of the day table. Empty rows render as "-".
type Row struct {
	Slot    int      `json:"slot"`
	Session *Session `json:"session,omitempty"`
}

// Table is the day view.
type Table struct {
	Date    model.Date `json:"date"`
	Heading string     `json:"heading"`
	Rows    []Row      `json:"rows"`
}

// DayTable lays the entries of date out over the fixed pair slots. When two
// entries land on the same slot the later one is shown.
func DayTable(entries []model.ScheduleEntry, date model.Date) Table {
	rows := make([]Row, schedule.PairSlots)
	for i := range rows {
		rows[i].Slot = i + 1
	}
	for _, e := range schedule.ForDate(entries, date) {
		s := newSession(e)
		rows[schedule.PairIndex(e.TimeStart)].Session = &s
	}
	return Table{
		Date:    date,
		Heading: schedule.FormatDayHeading(date),
		Rows:    rows,
	}
}

// Cell is one day of the month grid.
type Cell struct {
	Date       model.Date `json:"date"`
	Day        int        `json:"day"`
	InMonth    bool       `json:"in_month"`
	Marked     bool       `json:"marked"`
	Today      bool       `json:"today"`
	NoSessions bool       `json:"no_sessions"`
	Sessions   []Session  `json:"sessions"`
}

// Month is the calendar view.
type Month struct {
	Month    model.Date `json:"month"`
	Heading  string     `json:"heading"`
	Weekdays []string   `json:"weekdays"`
	Weeks    [][]Cell   `json:"weeks"`
	// Empty is set when nothing at all is scheduled in the month.
	Empty bool `json:"empty"`
}

var weekdayShort = [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// MonthGrid builds full weeks covering the month of anchor. Out-of-month
// cells carry their date but no sessions or markers.
func MonthGrid(entries []model.ScheduleEntry, anchor model.Date, weekStart time.Weekday, markers []int, today model.Date) (Month, error) {
	first, last := anchor.FirstOfMonth(), anchor.LastOfMonth()

	byDate := make(map[string][]model.ScheduleEntry)
	inMonth := model.Interval{Start: first, End: last}
	for _, e := range entries {
		if inMonth.ContainsDate(e.Date) {
			byDate[e.Date.String()] = append(byDate[e.Date.String()], e)
		}
	}
	marked := make(map[int]bool, len(markers))
	for _, d := range markers {
		marked[d] = true
	}

	weekStarts, err := weeksOf(first, last, weekStart)
	if err != nil {
		return Month{}, err
	}

	m := Month{
		Month:   first,
		Heading: schedule.FormatMonthHeading(first),
		Empty:   len(byDate) == 0,
	}
	for i := 0; i < 7; i++ {
		m.Weekdays = append(m.Weekdays, weekdayShort[(int(weekStart)+i)%7])
	}

	for _, ws := range weekStarts {
		week := make([]Cell, 7)
		for i := range week {
			day := ws.AddDays(i)
			c := Cell{Date: day, Day: day.Day(), Sessions: []Session{}}
			if inMonth.ContainsDate(day) {
				c.InMonth = true
				c.Marked = marked[day.Day()]
				c.Today = day == today
				list := byDate[day.String()]
				schedule.SortChronological(list)
				for _, e := range list {
					c.Sessions = append(c.Sessions, newSession(e))
				}
				c.NoSessions = len(c.Sessions) == 0
			}
			week[i] = c
		}
		m.Weeks = append(m.Weeks, week)
	}
	return m, nil
}

// weeksOf returns the first day of every week that intersects [first, last].
func weeksOf(first, last model.Date, weekStart time.Weekday) ([]model.Date, error) {
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7
	gridStart := first.AddDays(-offset)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Dtstart: gridStart.Time(time.UTC),
		Until:   last.Time(time.UTC),
	})
	if err != nil {
		return nil, fmt.Errorf("week rule: %w", err)
	}

	var out []model.Date
	for _, t := range r.All() {
		out = append(out, model.DateOf(t))
	}
	return out, nil
}

// WeekStart maps the week_start config value.
func WeekStart(s string) time.Weekday {
	if s == "sunday" {
		return time.Sunday
	}
	return time.Monday
}
