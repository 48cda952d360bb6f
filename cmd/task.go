package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/formatter"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/urfave/cli/v3"
)

// TaskAdd validates and adds a task.
func (r *Runner) TaskAdd(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	t, err := eng.AddTask(taskInput(cmd))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Added task %s: %s (%s-%s, %s)\n", t.ID, t.Name, t.StartTime, t.EndTime, t.Schedule)
}

// TaskList prints the stored tasks.
//
// The store is read directly so a running scheduler's statuses are shown as persisted.
func (r *Runner) TaskList(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	store, release, err := r.openStore()
	if err != nil {
		return err
	}
	defer release()

	tasks, rejected, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	for _, rec := range rejected {
		r.logger.Warn("rejected task record", "index", rec.Index, "reason", rec.Reason)
	}

	if cmd.Bool("json") {
		records := make([]models.Record, len(tasks))
		for i, t := range tasks {
			records[i] = models.RecordOf(t)
		}
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	data, err := formatter.ExportToText(tasks)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}

// TaskEdit replaces the fields given on the command line; the rest keep their values.
func (r *Runner) TaskEdit(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrMissingArgument)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	current, err := findTask(eng.Tasks(), id)
	if err != nil {
		return err
	}

	in := engine.TaskInput{
		Name:      current.Name,
		StartTime: current.StartTime,
		EndTime:   current.EndTime,
		Schedule:  current.Schedule,
		AudioPath: current.AudioPath,
	}
	edited := taskInput(cmd)
	if cmd.IsSet("name") {
		in.Name = edited.Name
	}
	if cmd.IsSet("start") {
		in.StartTime = edited.StartTime
		if !cmd.IsSet("end") {
			in.EndTime = ""
		}
	}
	if cmd.IsSet("end") {
		in.EndTime = edited.EndTime
	}
	if cmd.IsSet("schedule") {
		in.Schedule = edited.Schedule
	}
	if cmd.IsSet("audio") {
		in.AudioPath = edited.AudioPath
		if !cmd.IsSet("end") {
			in.EndTime = ""
		}
	}
	in.Volume = edited.Volume

	t, err := eng.EditTask(id, in)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Updated task %s: %s (%s-%s, %s, vol %d)\n", t.ID, t.Name, t.StartTime, t.EndTime, t.Schedule, t.Volume)
}

// TaskDelete removes the tasks named by id.
func (r *Runner) TaskDelete(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one task id is required", shared.ErrMissingArgument)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	before := len(eng.Tasks())
	err = eng.DeleteTasks(ids...)
	if removed := before - len(eng.Tasks()); removed > 0 {
		r.writePlain("✓ Deleted %d task(s)\n", removed)
	}
	return err
}

// TaskCopy duplicates a task.
func (r *Runner) TaskCopy(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrMissingArgument)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	t, err := eng.CopyTask(id)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Copied task %s as %s: %s\n", id, t.ID, t.Name)
}

// TaskPauseToday toggles the paused-today status of each task.
func (r *Runner) TaskPauseToday(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one task id is required", shared.ErrMissingArgument)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	toggleErr := eng.TogglePauseToday(ids...)
	tasks := eng.Tasks()
	for _, id := range ids {
		if t, err := findTask(tasks, id); err == nil {
			r.writePlain("%s. %s: %s\n", t.ID, t.Name, t.Status.Label())
		}
	}
	return toggleErr
}

// TaskVolume changes the volume of a task.
func (r *Runner) TaskVolume(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrMissingArgument)
	}
	volume, err := strconv.Atoi(cmd.StringArg("volume"))
	if err != nil {
		return fmt.Errorf("%w: volume must be a number: %v", shared.ErrInvalidArgument, err)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := eng.SetVolume(id, volume); err != nil {
		return err
	}
	return r.writePlain("✓ Task %s volume set to %d\n", id, volume)
}

func taskInput(cmd *cli.Command) engine.TaskInput {
	in := engine.TaskInput{
		Name:      cmd.String("name"),
		StartTime: cmd.String("start"),
		EndTime:   cmd.String("end"),
		Schedule:  cmd.String("schedule"),
		AudioPath: cmd.String("audio"),
	}
	if cmd.IsSet("volume") {
		v := int(cmd.Int("volume"))
		in.Volume = &v
	}
	return in
}

func findTask(tasks []models.Task, id string) (models.Task, error) {
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
}

