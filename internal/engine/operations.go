package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/chime/internal/lifecycle"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
)

// TaskInput holds the user-editable fields of a task.
//
// An empty EndTime is derived from the start time and the probed audio duration.
// A nil Volume takes the engine's default volume.
type TaskInput struct {
	Name      string
	StartTime string
	EndTime   string
	Volume    *int
	Schedule  string
	AudioPath string
}

// ImportMode selects how imported tasks combine with the collection.
type ImportMode int

const (
	ImportMerge ImportMode = iota
	ImportReplace
)

func (m ImportMode) String() string {
	switch m {
	case ImportMerge:
		return "merge"
	case ImportReplace:
		return "replace"
	default:
		return ""
	}
}

// ImportResult summarizes an import.
type ImportResult struct {
	Mode     ImportMode
	Added    int
	Rejected []error
	Tasks    []models.Task // collection after the import
}

// AddTask validates in and appends a waiting task.
func (e *Engine) AddTask(in TaskInput) (models.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := e.build(in)
	if err != nil {
		return models.Task{}, err
	}
	t.Key = shared.GenerateID()
	t.Status = models.StatusWaiting

	e.tasks = append(e.tasks, t)
	e.logger.Info("task added", "name", t.Name, "start", t.StartTime, "schedule", t.Schedule)

	err = e.save()
	return e.byKey(t.Key), err
}

// EditTask replaces the fields of task id. An active task is stopped first; the status resets to waiting.
func (e *Engine) EditTask(id string, in TaskInput) (models.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.indexByID(id)
	if err != nil {
		return models.Task{}, err
	}
	if in.Volume == nil {
		v := e.tasks[i].Volume
		in.Volume = &v
	}

	t, err := e.build(in)
	if err != nil {
		return models.Task{}, err
	}

	key := e.tasks[i].Key
	if info, ok := e.ctrl.Active(); ok && info.TaskKey == key {
		e.ctrl.Stop()
	}

	from := e.tasks[i].Status
	delete(e.fired, key)
	t.Key = key
	t.ID = e.tasks[i].ID
	t.Status = models.StatusWaiting
	e.tasks[i] = t
	if from != t.Status {
		e.send(statusChangedEvent(t, from))
	}
	e.logger.Info("task edited", "task", id, "name", t.Name)

	err = e.save()
	return e.byKey(key), err
}

// DeleteTasks removes the tasks with the given ids, stopping playback first when the active task is among them.
//
// Unknown ids are reported in the joined error; the known ones are still removed.
func (e *Engine) DeleteTasks(ids ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		i, err := e.indexByID(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		remove[e.tasks[i].Key] = true
	}
	if len(remove) == 0 {
		return errors.Join(errs...)
	}

	if info, ok := e.ctrl.Active(); ok && remove[info.TaskKey] {
		e.ctrl.Stop()
	}

	kept := e.tasks[:0:0]
	for _, t := range e.tasks {
		if !remove[t.Key] {
			kept = append(kept, t)
			continue
		}
		delete(e.fired, t.Key)
	}
	e.tasks = kept
	e.logger.Info("tasks deleted", "count", len(remove))

	if err := e.save(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CopyTask duplicates task id as a new waiting task named "<name> - copy".
func (e *Engine) CopyTask(id string) (models.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.indexByID(id)
	if err != nil {
		return models.Task{}, err
	}

	t := e.tasks[i]
	t.Key = shared.GenerateID()
	t.Name += " - copy"
	t.Status = models.StatusWaiting
	e.tasks = append(e.tasks, t)

	err = e.save()
	return e.byKey(t.Key), err
}

// PlayTask plays task id immediately, preempting any other task. A paused task is resumed.
func (e *Engine) PlayTask(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.indexByID(id)
	if err != nil {
		return err
	}

	playErr := e.play(i, e.now())
	if err := e.save(); err != nil {
		return errors.Join(playErr, err)
	}
	return playErr
}

// PauseOrResume toggles pause on task id when it is active, and starts it otherwise.
func (e *Engine) PauseOrResume(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.indexByID(id)
	if err != nil {
		return err
	}

	info, ok := e.ctrl.Active()
	if !ok || info.TaskKey != e.tasks[i].Key {
		playErr := e.play(i, e.now())
		if err := e.save(); err != nil {
			return errors.Join(playErr, err)
		}
		return playErr
	}

	ev := lifecycle.EventPause
	toggle := e.ctrl.Pause
	if info.Paused {
		ev, toggle = lifecycle.EventResume, e.ctrl.Resume
	}
	if err := toggle(); err != nil {
		return err
	}
	if !e.apply(i, ev) {
		return nil
	}
	return e.save()
}

// StopActive stops the playing task. It becomes completed when stopped at or after its end time, waiting otherwise.
func (e *Engine) StopActive() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.stopActive() {
		return nil
	}
	return e.save()
}

// TogglePauseToday flips each task between paused-today and waiting. Active tasks are stopped first.
//
// Ids that are unknown or whose status cannot be toggled are reported in the joined error.
func (e *Engine) TogglePauseToday(ids ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	changed := false
	for _, id := range ids {
		i, err := e.indexByID(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if _, err := lifecycle.Transition(e.tasks[i].Status, lifecycle.EventPauseToday); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", id, err))
			continue
		}

		if info, ok := e.ctrl.Active(); ok && info.TaskKey == e.tasks[i].Key {
			e.ctrl.Stop()
		}
		changed = e.apply(i, lifecycle.EventPauseToday) || changed
	}

	if changed {
		if err := e.save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetVolume changes the volume of task id, applying it to the live session when the task is playing.
func (e *Engine) SetVolume(id string, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: volume %d out of range 0-100", shared.ErrInvalidInput, volume)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.indexByID(id)
	if err != nil {
		return err
	}
	if e.tasks[i].Volume == volume {
		return nil
	}

	if info, ok := e.ctrl.Active(); ok && info.TaskKey == e.tasks[i].Key {
		if err := e.ctrl.SetVolume(volume); err != nil {
			return err
		}
	}
	e.tasks[i].Volume = volume
	return e.save()
}

// ImportTasks adds tasks to the collection, or replaces it in [ImportReplace] mode after stopping playback.
//
// Each task is validated; invalid ones are reported in the result and skipped. Imported
// tasks get fresh keys, and any playing or paused status is reset to waiting.
func (e *Engine) ImportTasks(tasks []models.Task, mode ImportMode) (ImportResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := ImportResult{Mode: mode}
	accepted := make([]models.Task, 0, len(tasks))
	for n, t := range tasks {
		if err := t.Validate(); err != nil {
			result.Rejected = append(result.Rejected, fmt.Errorf("%w: record %d (%s): %w", shared.ErrInvalidTask, n, t.Name, err))
			continue
		}
		if t.EndTime == "" {
			start, _ := t.Start()
			t.EndTime = models.DeriveEnd(start, e.probe(t.AudioPath)).String()
		}
		t = t.Normalize()
		t.Key = shared.GenerateID()
		if t.Status.Active() {
			t.Status = models.StatusWaiting
		}
		accepted = append(accepted, t)
	}

	if mode == ImportReplace {
		e.ctrl.Stop()
		clear(e.fired)
		e.tasks = accepted
	} else {
		e.tasks = append(e.tasks, accepted...)
	}
	result.Added = len(accepted)
	e.logger.Info("tasks imported", "mode", mode, "added", result.Added, "rejected", len(result.Rejected))

	err := e.save()
	result.Tasks = append([]models.Task(nil), e.tasks...)
	return result, err
}

// ExportTasks returns the collection in canonical order.
func (e *Engine) ExportTasks() []models.Task {
	return e.Tasks()
}

// build validates in and produces a normalized task with its end time derived when missing.
func (e *Engine) build(in TaskInput) (models.Task, error) {
	volume := e.volume
	if in.Volume != nil {
		volume = *in.Volume
	}

	t := models.Task{
		Name:      strings.TrimSpace(in.Name),
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Volume:    volume,
		Schedule:  in.Schedule,
		AudioPath: in.AudioPath,
	}
	if err := t.Validate(); err != nil {
		return models.Task{}, fmt.Errorf("%w: %w", shared.ErrInvalidTask, err)
	}
	if !shared.FileExists(t.AudioPath) {
		return models.Task{}, fmt.Errorf("%w: %s", shared.ErrResourceMissing, t.AudioPath)
	}

	if t.EndTime == "" {
		start, _ := t.Start()
		t.EndTime = models.DeriveEnd(start, e.probe(t.AudioPath)).String()
	}
	return t.Normalize(), nil
}

func (e *Engine) probe(path string) time.Duration {
	if e.prober == nil {
		return e.fallback
	}
	d, err := e.prober.Probe(path)
	if err != nil || d <= 0 {
		e.logger.Debug("probe failed, using fallback duration", "path", path, "error", err)
		return e.fallback
	}
	return d
}

func (e *Engine) byKey(key string) models.Task {
	if i := e.indexByKey(key); i >= 0 {
		return e.tasks[i]
	}
	return models.Task{}
}
