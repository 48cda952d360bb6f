package engine

import (
	"fmt"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/playback"
)

// Event is a notification for display layers, read from [Engine.Events].
type Event struct {
	Kind     Kind
	TaskKey  string
	TaskID   string
	TaskName string
	Status   models.Status // new status for StatusChanged
	Elapsed  time.Duration
	Duration time.Duration
	Percent  float64
	Message  string // Human-readable message for display
	Err      error  // set for PersistenceFailed
}

// Kind enumerates engine events.
type Kind int

const (
	EventProgress Kind = iota
	EventCompleted
	EventStatusChanged
	EventPersistenceFailed
)

func (k Kind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventCompleted:
		return "completed"
	case EventStatusChanged:
		return "status_changed"
	case EventPersistenceFailed:
		return "persistence_failed"
	default:
		return ""
	}
}

func progressEvent(t models.Task, s playback.SessionInfo, percent float64) Event {
	return Event{
		Kind:     EventProgress,
		TaskKey:  t.Key,
		TaskID:   t.ID,
		TaskName: t.Name,
		Status:   t.Status,
		Elapsed:  s.Elapsed,
		Duration: s.Duration,
		Percent:  percent,
	}
}

func completedEvent(t models.Task, s playback.SessionInfo) Event {
	return Event{
		Kind:     EventCompleted,
		TaskKey:  t.Key,
		TaskID:   t.ID,
		TaskName: t.Name,
		Status:   t.Status,
		Elapsed:  s.Elapsed,
		Duration: s.Duration,
		Percent:  100,
		Message:  fmt.Sprintf("Finished: %s", t.Name),
	}
}

func statusChangedEvent(t models.Task, from models.Status) Event {
	return Event{
		Kind:     EventStatusChanged,
		TaskKey:  t.Key,
		TaskID:   t.ID,
		TaskName: t.Name,
		Status:   t.Status,
		Message:  fmt.Sprintf("%s: %s → %s", t.Name, from.Label(), t.Status.Label()),
	}
}

func persistenceFailedEvent(err error) Event {
	return Event{
		Kind:    EventPersistenceFailed,
		Message: fmt.Sprintf("Save failed: %v", err),
		Err:     err,
	}
}
