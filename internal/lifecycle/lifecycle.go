// Package lifecycle implements the task status state machine and the daily rollover of paused-today tasks.
//
// [Transition] is the only place status changes are decided. Callers map what happened
// (a schedule match, a manual stop, a missing file) to an [Event] and store the result.
package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// Event is something that happened to a task.
type Event int

const (
	EventStart      Event = iota // scheduler match or manual play
	EventPause                   // manual pause
	EventResume                  // manual resume
	EventComplete                // device finished the stream
	EventStopEarly               // stopped or preempted before end time
	EventStopLate                // stopped or preempted at or after end time
	EventPauseToday              // pause-today toggle
	EventRollover                // observed date advanced
	EventFault                   // missing resource, device failure or malformed field
	EventRecover                 // resource restored and fields re-checked
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventComplete:
		return "complete"
	case EventStopEarly:
		return "stop_early"
	case EventStopLate:
		return "stop_late"
	case EventPauseToday:
		return "pause_today"
	case EventRollover:
		return "rollover"
	case EventFault:
		return "fault"
	case EventRecover:
		return "recover"
	default:
		return ""
	}
}

// Transition returns the status that follows from applying ev to a task in status from.
//
// Re-applying a state's own entry event (pausing a paused task, starting a playing one) is a no-op.
func Transition(from models.Status, ev Event) (models.Status, error) {
	switch ev {
	case EventFault:
		return models.StatusError, nil

	case EventStart:
		switch from {
		case models.StatusWaiting, models.StatusPlaying, models.StatusCompleted, models.StatusError, models.StatusPausedToday:
			return models.StatusPlaying, nil
		}

	case EventPause:
		if from == models.StatusPlaying || from == models.StatusPaused {
			return models.StatusPaused, nil
		}

	case EventResume:
		if from == models.StatusPaused || from == models.StatusPlaying {
			return models.StatusPlaying, nil
		}

	case EventComplete:
		if from == models.StatusPlaying {
			return models.StatusCompleted, nil
		}

	case EventStopEarly, EventStopLate:
		if from.Active() {
			if ev == EventStopLate {
				return models.StatusCompleted, nil
			}
			return models.StatusWaiting, nil
		}

	case EventPauseToday:
		switch from {
		case models.StatusPlaying, models.StatusPaused, models.StatusWaiting:
			return models.StatusPausedToday, nil
		case models.StatusPausedToday:
			return models.StatusWaiting, nil
		}

	case EventRollover:
		if from == models.StatusPausedToday {
			return models.StatusWaiting, nil
		}

	case EventRecover:
		if from == models.StatusError {
			return models.StatusWaiting, nil
		}
	}

	return from, fmt.Errorf("%w: %s on %s", shared.ErrInvalidTransition, ev, from)
}

// PastEnd reports whether now is at or after the task's end time.
//
// When the end time is not after the start time the play window wraps past midnight, and
// now counts as past the end only between the end time and the next start time.
func PastEnd(t models.Task, now time.Time) (bool, error) {
	start, err := t.Start()
	if err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrMalformedTime, err)
	}
	end, err := t.End()
	if err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrMalformedTime, err)
	}

	tod := models.ClockOf(now)
	if end > start {
		return tod >= end, nil
	}
	return tod >= end && tod < start, nil
}

// StopEvent picks the stop event for t at now. An unparsable end time is treated as not yet reached.
func StopEvent(t models.Task, now time.Time) Event {
	if past, err := PastEnd(t, now); err == nil && past {
		return EventStopLate
	}
	return EventStopEarly
}

// DayTracker holds the process-wide last observed calendar date.
type DayTracker struct {
	mu   sync.Mutex
	last time.Time
}

// NewDayTracker seeds the tracker with the date of now.
func NewDayTracker(now time.Time) *DayTracker {
	return &DayTracker{last: dateOf(now)}
}

// Observe records now and reports whether its date is later than the last observed date.
//
// It returns true exactly once per advance; earlier dates are ignored.
func (d *DayTracker) Observe(now time.Time) bool {
	today := dateOf(now)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !today.After(d.last) {
		return false
	}
	d.last = today
	return true
}

// Date returns the last observed date as "YYYY-MM-DD".
func (d *DayTracker) Date() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last.Format(models.DateLayout)
}

// EarlierDay reports whether t falls on a calendar date before now's, both taken in now's location.
func EarlierDay(t, now time.Time) bool {
	return dateOf(t.In(now.Location())).Before(dateOf(now))
}

func dateOf(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}
