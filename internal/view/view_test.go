package view

import (
	"testing"
	"time"

	"groupsched/internal/model"
)

func mk(t *testing.T, date, start, finish, name string) model.ScheduleEntry {
	t.Helper()
	d, err := model.ParseDotted(date)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := model.ParseClock(start)
	f, _ := model.ParseClock(finish)
	return model.ScheduleEntry{Date: d, TimeStart: s, TimeFinish: f, CourseName: name, Room: "301", Teacher: "Иванов И.И."}
}

func TestMonthGridOneBusyDay(t *testing.T) {
	entries := []model.ScheduleEntry{
		mk(t, "05.03.2024", "11:20", "12:50", "Химия (лабораторная работа)"),
		mk(t, "05.03.2024", "08:00", "09:30", "Математика (Лекция)"),
		mk(t, "05.03.2024", "09:40", "11:10", "Физика (Практ. (семин.) занятие)"),
	}
	anchor := model.NewDate(2024, time.March, 15)

	m, err := MonthGrid(entries, anchor, time.Monday, []int{5, 20}, model.NewDate(2024, time.March, 20))
	if err != nil {
		t.Fatal(err)
	}
	if m.Heading != "Март 2024" || m.Empty {
		t.Fatalf("heading=%q empty=%v", m.Heading, m.Empty)
	}
	if m.Weekdays[0] != "Пн" || m.Weekdays[6] != "Вс" {
		t.Fatalf("weekdays = %v", m.Weekdays)
	}
	// 1 March 2024 is a Friday: the grid starts on Monday 26 February and
	// needs five weeks to reach Sunday 31 March.
	if len(m.Weeks) != 5 {
		t.Fatalf("weeks = %d, want 5", len(m.Weeks))
	}
	if first := m.Weeks[0][0]; first.InMonth || first.Date != model.NewDate(2024, time.February, 26) {
		t.Fatalf("first cell = %+v", first)
	}

	busy, empty := 0, 0
	for _, w := range m.Weeks {
		for _, c := range w {
			if !c.InMonth {
				if len(c.Sessions) != 0 || c.NoSessions || c.Marked {
					t.Errorf("out-of-month cell carries data: %+v", c)
				}
				continue
			}
			if len(c.Sessions) > 0 {
				busy++
				if c.Day != 5 || len(c.Sessions) != 3 {
					t.Errorf("unexpected busy cell %+v", c)
				}
				if c.Sessions[0].Subject != "Математика" || c.Sessions[0].Type != "Лекция" {
					t.Errorf("sessions not sorted by time: %+v", c.Sessions)
				}
				if !c.Marked {
					t.Error("day 5 should be marked")
				}
			} else if c.NoSessions {
				empty++
			}
			if c.Day == 20 && !c.Today {
				t.Error("20 March should be today")
			}
		}
	}
	if busy != 1 || empty != 30 {
		t.Fatalf("busy=%d empty=%d, want 1 and 30", busy, empty)
	}
}

func TestMonthGridEmptyMonthAndSundayStart(t *testing.T) {
	// An entry outside the month does not count.
	entries := []model.ScheduleEntry{mk(t, "01.04.2024", "08:00", "09:30", "A")}
	m, err := MonthGrid(entries, model.NewDate(2024, time.March, 1), time.Sunday, nil, model.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Empty {
		t.Fatal("month without sessions should be empty")
	}
	if m.Weekdays[0] != "Вс" {
		t.Fatalf("weekdays = %v", m.Weekdays)
	}
	if first := m.Weeks[0][0].Date; first.Weekday() != time.Sunday || first != model.NewDate(2024, time.February, 25) {
		t.Fatalf("grid start = %s", first)
	}
	last := m.Weeks[len(m.Weeks)-1]
	if !last[0].Date.Before(model.NewDate(2024, time.April, 1)) {
		t.Fatalf("extra trailing week: %s", last[0].Date)
	}
}

func TestFebruaryStartingOnMonday(t *testing.T) {
	// February 2021 starts on Monday and has exactly four weeks.
	m, err := MonthGrid(nil, model.NewDate(2021, time.February, 10), time.Monday, nil, model.Date{})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Weeks) != 4 {
		t.Fatalf("weeks = %d, want 4", len(m.Weeks))
	}
}

func TestDayTable(t *testing.T) {
	entries := []model.ScheduleEntry{
		mk(t, "10.03.2024", "09:40:00", "11:10:00", "Физика (Лекция)"),
		mk(t, "10.03.2024", "14:50", "16:20", "История (Практ. (семин.) занятие)"),
		mk(t, "11.03.2024", "08:00", "09:30", "Other day"),
	}
	tb := DayTable(entries, model.NewDate(2024, time.March, 10))
	if tb.Heading != "10 марта (Воскресенье)" {
		t.Errorf("heading = %q", tb.Heading)
	}
	if len(tb.Rows) != 5 {
		t.Fatalf("rows = %d", len(tb.Rows))
	}
	if tb.Rows[0].Session != nil || tb.Rows[2].Session != nil || tb.Rows[3].Session != nil {
		t.Error("unused slots should be empty")
	}
	if s := tb.Rows[1].Session; s == nil || s.Time != "09:40 - 11:10" || s.Subject != "Физика" {
		t.Errorf("slot 2 = %+v", s)
	}
	if s := tb.Rows[4].Session; s == nil || s.Type != "Практика" {
		t.Errorf("slot 5 = %+v", s)
	}
}
