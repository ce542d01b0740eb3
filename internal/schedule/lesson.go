package schedule

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"groupsched/internal/model"
)

var groupPattern = regexp.MustCompile(`^(\p{L}+)([-\s]?)(\d+)$`)

// NormalizeGroup trims and lowercases a group name and, for names shaped
// like letters[-| ]digits, capitalizes the first letter: "б-101" → "Б-101".
func NormalizeGroup(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if !groupPattern.MatchString(s) {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Session type tags embedded in course names by the schedule service.
const (
	TypePractice = "Практика"
	TypeLecture  = "Лекция"
	TypeLab      = "Лабораторная работа"
	TypeUnknown  = "Неизвестно"
)

// ClassType extracts the session type from a course name such as
// "Математика (Лекция)".
func ClassType(name string) string {
	switch {
	case strings.Contains(name, "(Практ. (семин.) занятие)"):
		return TypePractice
	case strings.Contains(name, "(Лекция)"):
		return TypeLecture
	case strings.Contains(name, "(лабораторная работа)"):
		return TypeLab
	default:
		return TypeUnknown
	}
}

// Subject strips everything from the first "(" to the last ")" and trims.
func Subject(name string) string {
	open := strings.Index(name, "(")
	if open < 0 {
		return strings.TrimSpace(name)
	}
	end := strings.LastIndex(name, ")")
	if end < open {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(name[:open] + name[end+1:])
}

// PairSlots is the number of class slots in a day.
const PairSlots = 5

var pairStarts = map[string]int{
	"08:00": 0,
	"09:40": 1,
	"11:20": 2,
	"13:20": 3,
	"12:50": 3,
	"15:00": 4,
	"14:50": 4,
}

// PairIndex maps a class start to its slot; unknown starts go to slot 0.
func PairIndex(start model.Clock) int {
	return pairStarts[start.String()]
}

var monthsGenitive = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var monthsNominative = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var weekdays = [...]string{
	"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота",
}

// FormatDayHeading renders "10 марта (Воскресенье)".
func FormatDayHeading(d model.Date) string {
	return strconv.Itoa(d.Day()) + " " + monthsGenitive[d.Month()-1] + " (" + weekdays[d.Weekday()] + ")"
}

// FormatMonthHeading renders "Март 2024".
func FormatMonthHeading(d model.Date) string {
	return monthsNominative[d.Month()-1] + " " + strconv.Itoa(d.Year())
}
