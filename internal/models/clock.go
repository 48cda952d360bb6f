package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Clock is a time of day with second resolution, stored as the offset from midnight.
type Clock time.Duration

// ParseClock parses "HH:MM:SS" or "HH:MM" (normalised to "HH:MM:00").
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM:SS", s)
	}

	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		if len(p) == 0 || len(p) > 2 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		values[i] = v
	}

	d := time.Duration(values[0])*time.Hour + time.Duration(values[1])*time.Minute + time.Duration(values[2])*time.Second
	return Clock(d), nil
}

// ClockOf returns the time of day of t, truncated to the second.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// Add returns c advanced by d, wrapping at midnight. wrapped reports whether midnight was crossed.
func (c Clock) Add(d time.Duration) (next Clock, wrapped bool) {
	total := time.Duration(c) + d.Truncate(time.Second)
	wrapped = total >= day || total < 0
	total %= day
	if total < 0 {
		total += day
	}
	return Clock(total), wrapped
}

// On returns the instant at this time of day on the calendar date of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location()).Add(time.Duration(c))
}

// String formats the clock as "HH:MM:SS".
func (c Clock) String() string {
	d := time.Duration(c)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
