package scheduler

import (
	"fmt"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// Tolerance is the narrowest allowed distance between a tick and a task's start time for the task to fire.
const Tolerance = 1 * time.Second

// Fault marks a task that must move to the error status.
type Fault struct {
	Key    string
	TaskID string
	Err    error
}

// Plan is the outcome of evaluating one tick. The caller applies it in field order:
// stop the active task on ActiveFault, apply Recovered and Faults, then Start.
type Plan struct {
	ActiveFault *Fault   // the task owning the session lost its resource
	Recovered   []string // keys of error tasks that passed the re-check
	Faults      []Fault
	Start       string // key of the task to start, empty when none
}

// Occurrences maps a task key to the last occurrence it fired for, as returned by [Occurrence].
type Occurrences map[string]string

// Occurrence names the start of t on now's date, "YYYY-MM-DD HH:MM:SS". It is empty when the start time is malformed.
func Occurrence(t models.Task, now time.Time) string {
	start, err := t.Start()
	if err != nil {
		return ""
	}
	return now.Format(models.DateLayout) + " " + start.String()
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return p.ActiveFault == nil && len(p.Recovered) == 0 && len(p.Faults) == 0 && p.Start == ""
}

// Evaluate decides what a tick at now does to tasks, using [Tolerance].
//
// activeKey is the key of the task owning the playback session, empty when idle. exists reports
// whether an audio resource is present.
func Evaluate(now time.Time, tasks []models.Task, activeKey string, exists func(string) bool) Plan {
	return EvaluateWithin(Tolerance, now, tasks, activeKey, nil, exists)
}

// EvaluateWithin is [Evaluate] with an explicit tolerance, never narrower than [Tolerance].
//
// A task whose occurrence at now is already in fired does not start again. While the active
// task is inside the window of the occurrence it fired for, no other task starts. fired may be nil.
func EvaluateWithin(tolerance time.Duration, now time.Time, tasks []models.Task, activeKey string, fired Occurrences, exists func(string) bool) Plan {
	tolerance = max(tolerance, Tolerance)

	var plan Plan
	holding := false
	for _, t := range tasks {
		if activeKey != "" && t.Key == activeKey {
			holding = firedFor(fired, t, now, tolerance)
			break
		}
	}

	for _, t := range tasks {
		if t.Key == activeKey && activeKey != "" {
			if !exists(t.AudioPath) {
				plan.ActiveFault = &Fault{Key: t.Key, TaskID: t.ID, Err: fmt.Errorf("%w: %s", shared.ErrResourceMissing, t.AudioPath)}
			}
			continue
		}

		switch t.Status {
		case models.StatusPlaying, models.StatusPaused, models.StatusPausedToday:
			continue
		}

		if !exists(t.AudioPath) {
			if t.Status != models.StatusError {
				plan.Faults = append(plan.Faults, Fault{Key: t.Key, TaskID: t.ID, Err: fmt.Errorf("%w: %s", shared.ErrResourceMissing, t.AudioPath)})
			}
			continue
		}

		matched, err := matches(t, now, tolerance)
		if err != nil {
			if t.Status != models.StatusError {
				plan.Faults = append(plan.Faults, Fault{Key: t.Key, TaskID: t.ID, Err: err})
			}
			continue
		}

		if t.Status == models.StatusError {
			plan.Recovered = append(plan.Recovered, t.Key)
		}

		if matched && plan.Start == "" && !holding && fired[t.Key] != Occurrence(t, now) {
			plan.Start = t.Key
		}
	}

	return plan
}

// Matches reports whether t is due at now: its schedule selects now's date and its start
// time lies within tolerance of now's time of day.
func Matches(t models.Task, now time.Time, tolerance time.Duration) (bool, error) {
	return matches(t, now, max(tolerance, Tolerance))
}

// firedFor reports whether t already fired for its occurrence at now and now is still inside that window.
func firedFor(fired Occurrences, t models.Task, now time.Time, tolerance time.Duration) bool {
	occ, ok := fired[t.Key]
	if !ok || occ != Occurrence(t, now) {
		return false
	}
	matched, err := matches(t, now, tolerance)
	return err == nil && matched
}

func matches(t models.Task, now time.Time, tolerance time.Duration) (bool, error) {
	start, err := t.Start()
	if err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrMalformedTime, err)
	}
	sched, err := t.ParsedSchedule()
	if err != nil {
		return false, fmt.Errorf("%w: %w", shared.ErrMalformedSchedule, err)
	}

	if !sched.Matches(now) {
		return false, nil
	}

	diff := now.Sub(start.On(now))
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance, nil
}
