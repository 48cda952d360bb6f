package repositories

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// TaskStore persists the whole task collection.
//
// SaveAll canonicalizes the collection (see [Canonicalize]), writes it atomically and
// returns the canonical slice. A failed save leaves the previously persisted collection intact.
type TaskStore interface {
	LoadAll() ([]models.Task, []models.RecordError, error)
	SaveAll(tasks []models.Task) ([]models.Task, error)
}

// Dated is implemented by stores that know when they were last written.
//
// LastSaved returns the zero time when nothing was ever saved.
type Dated interface {
	LastSaved() (time.Time, error)
}

// Canonicalize returns a copy of tasks stably sorted by start time with ids renumbered 1..N.
//
// Tasks with an unparsable start time keep their relative order after every valid one.
func Canonicalize(tasks []models.Task) []models.Task {
	type keyed struct {
		task  models.Task
		start models.Clock
		ok    bool
	}

	items := make([]keyed, len(tasks))
	for i, t := range tasks {
		c, err := t.Start()
		items[i] = keyed{task: t, start: c, ok: err == nil}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		switch {
		case a.ok && b.ok:
			return cmp.Compare(a.start, b.start)
		case a.ok:
			return -1
		case b.ok:
			return 1
		default:
			return 0
		}
	})

	out := make([]models.Task, len(items))
	for i, it := range items {
		it.task.ID = strconv.Itoa(i + 1)
		out[i] = it.task
	}
	return out
}

// malformed tags decoder rejections with [shared.ErrMalformedRecord].
func malformed(rejected []models.RecordError) []models.RecordError {
	for i := range rejected {
		rejected[i].Reason = fmt.Errorf("%w: %w", shared.ErrMalformedRecord, rejected[i].Reason)
	}
	return rejected
}
