package schedule

import (
	"fmt"
	"strings"

	"groupsched/internal/model"
)

// StepUnit is how far one navigation step moves the anchor date.
type StepUnit string

const (
	StepDay   StepUnit = "day"
	StepWeek  StepUnit = "week"
	StepMonth StepUnit = "month"
)

func ParseStepUnit(s string) (StepUnit, error) {
	switch StepUnit(strings.ToLower(strings.TrimSpace(s))) {
	case StepDay:
		return StepDay, nil
	case StepWeek:
		return StepWeek, nil
	case StepMonth:
		return StepMonth, nil
	default:
		return "", fmt.Errorf("unknown step unit %q", s)
	}
}

// Policy computes which interval to request for a view.
//
// In table mode the window is [anchor-Back, anchor+Ahead]; in calendar mode
// it is the whole month of the anchor.
type Policy struct {
	Back  int
	Ahead int
}

// DefaultPolicy loads three days either side of the anchor.
var DefaultPolicy = Policy{Back: 3, Ahead: 3}

// normalized makes the table window contain the anchor and at least one
// adjacent day.
func (p Policy) normalized() Policy {
	if p.Back < 0 {
		p.Back = 0
	}
	if p.Ahead < 0 {
		p.Ahead = 0
	}
	if p.Back+p.Ahead == 0 {
		p.Ahead = 1
	}
	return p
}

// RangeFor returns the interval to load for mode at anchor.
func (p Policy) RangeFor(mode model.ViewMode, anchor model.Date) model.Interval {
	if mode == model.ViewCalendar {
		return model.Interval{Start: anchor.FirstOfMonth(), End: anchor.LastOfMonth()}
	}
	p = p.normalized()
	return model.Interval{Start: anchor.AddDays(-p.Back), End: anchor.AddDays(p.Ahead)}
}

// VisibleRange is what the view shows: the anchor day in table mode, the
// anchor's month in calendar mode.
func (p Policy) VisibleRange(mode model.ViewMode, anchor model.Date) model.Interval {
	if mode == model.ViewCalendar {
		return p.RangeFor(mode, anchor)
	}
	return model.SingleDay(anchor)
}

// Step moves anchor by n units. Month steps clamp to the end of shorter
// months.
func Step(anchor model.Date, unit StepUnit, n int) model.Date {
	switch unit {
	case StepWeek:
		return anchor.AddDays(7 * n)
	case StepMonth:
		return anchor.AddMonths(n)
	default:
		return anchor.AddDays(n)
	}
}

// DefaultUnit is the natural step for a view: days for the table, months for
// the calendar.
func DefaultUnit(mode model.ViewMode) StepUnit {
	if mode == model.ViewCalendar {
		return StepMonth
	}
	return StepDay
}
