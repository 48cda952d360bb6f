package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout of a date-form schedule.
const DateLayout = "2006-01-02"

// WeekdaySeparator joins weekday tokens in a weekday-form schedule.
const WeekdaySeparator = ", "

// weekdayTokens is the canonical token alphabet, Monday first.
var weekdayTokens = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// weekdayAliases maps accepted input tokens to a Monday-first index.
var weekdayAliases = map[string]int{
	"mon": 0, "tue": 1, "wed": 2, "thu": 3, "fri": 4, "sat": 5, "sun": 6,
	"一": 0, "二": 1, "三": 2, "四": 3, "五": 4, "六": 5, "日": 6,
}

// ScheduleKind distinguishes the two mutually exclusive schedule forms.
type ScheduleKind int

const (
	ScheduleDate ScheduleKind = iota
	ScheduleWeekdays
)

// Schedule is either a single calendar date or a non-empty set of weekdays.
type Schedule struct {
	Kind ScheduleKind
	date time.Time
	days [7]bool
}

// ParseSchedule parses a schedule string.
//
// A value containing "," is always the weekday form. Otherwise a value parsing as
// [DateLayout] is the date form, and a lone weekday token is a one-day weekday set.
func ParseSchedule(s string) (Schedule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Schedule{}, fmt.Errorf("empty schedule")
	}

	if !strings.Contains(s, ",") {
		if d, err := time.Parse(DateLayout, s); err == nil {
			return Schedule{Kind: ScheduleDate, date: d}, nil
		}
	}

	sched := Schedule{Kind: ScheduleWeekdays}
	n := 0
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		i, ok := weekdayAliases[strings.ToLower(tok)]
		if !ok {
			return Schedule{}, fmt.Errorf("invalid schedule %q: unknown weekday %q", s, tok)
		}
		if !sched.days[i] {
			sched.days[i] = true
			n++
		}
	}
	if n == 0 {
		return Schedule{}, fmt.Errorf("invalid schedule %q: no weekday selected", s)
	}
	return sched, nil
}

// DateSchedule builds a date-form schedule for the calendar date of t.
func DateSchedule(t time.Time) Schedule {
	y, m, d := t.Date()
	return Schedule{Kind: ScheduleDate, date: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// WeekdaySchedule builds a weekday-form schedule. It fails when days is empty.
func WeekdaySchedule(days ...time.Weekday) (Schedule, error) {
	if len(days) == 0 {
		return Schedule{}, fmt.Errorf("no weekday selected")
	}
	sched := Schedule{Kind: ScheduleWeekdays}
	for _, d := range days {
		sched.days[mondayIndex(d)] = true
	}
	return sched, nil
}

// Matches reports whether the schedule selects the calendar date of now.
func (s Schedule) Matches(now time.Time) bool {
	switch s.Kind {
	case ScheduleDate:
		y, m, d := now.Date()
		sy, sm, sd := s.date.Date()
		return y == sy && m == sm && d == sd
	case ScheduleWeekdays:
		return s.days[mondayIndex(now.Weekday())]
	}
	return false
}

// Includes reports whether a weekday-form schedule selects d.
func (s Schedule) Includes(d time.Weekday) bool {
	return s.Kind == ScheduleWeekdays && s.days[mondayIndex(d)]
}

// Weekdays returns the selected weekdays, Monday first. It is empty for a date-form schedule.
func (s Schedule) Weekdays() []time.Weekday {
	var out []time.Weekday
	if s.Kind != ScheduleWeekdays {
		return out
	}
	for i, on := range s.days {
		if on {
			out = append(out, time.Weekday((i+1)%7))
		}
	}
	return out
}

// String renders the canonical persisted form.
func (s Schedule) String() string {
	if s.Kind == ScheduleDate {
		return s.date.Format(DateLayout)
	}
	var toks []string
	for i, on := range s.days {
		if on {
			toks = append(toks, weekdayTokens[i])
		}
	}
	return strings.Join(toks, WeekdaySeparator)
}

// WeekdayToken returns the canonical token for d.
func WeekdayToken(d time.Weekday) string {
	return weekdayTokens[mondayIndex(d)]
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
