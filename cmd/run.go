package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/scheduler"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/urfave/cli/v3"
)

// stopTimeout bounds how long shutdown waits for an in-flight tick.
const stopTimeout = 5 * time.Second

// Run drives the engine from the scheduler and logs its events until interrupted.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	sched, err := r.startScheduler(eng)
	if err != nil {
		return err
	}
	defer r.stopScheduler(sched)

	r.logger.Info("scheduler running", "tasks", len(eng.Tasks()), "interval", r.config.Scheduler.TickInterval)
	if !isTerminal(r.output) {
		r.logger.Debug("output is not a terminal, progress is logged at debug level")
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("shutting down")
			return nil
		case ev, ok := <-eng.Events():
			if !ok {
				return nil
			}
			logEvent(r.logger, ev)
		}
	}
}

// startScheduler starts a scheduler that ticks eng.
func (r *Runner) startScheduler(eng *engine.Engine) (*scheduler.Scheduler, error) {
	logger := shared.WithLogger(r.logger, "component", "scheduler")
	sched := scheduler.New(r.config.Scheduler.TickInterval, func(now time.Time) {
		if err := eng.Tick(now); err != nil {
			logger.Error("tick failed", "error", err)
		}
	}, logger)

	if err := sched.Start(); err != nil {
		return nil, err
	}
	return sched, nil
}

func (r *Runner) stopScheduler(sched *scheduler.Scheduler) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		r.logger.Warn("scheduler did not stop cleanly", "error", err)
	}
}

func logEvent(logger *log.Logger, ev engine.Event) {
	switch ev.Kind {
	case engine.EventProgress:
		logger.Debug("progress", "task", ev.TaskID, "name", ev.TaskName, "elapsed", shared.FormatDuration(ev.Elapsed), "percent", int(ev.Percent))
	case engine.EventCompleted:
		logger.Info("task completed", "task", ev.TaskID, "name", ev.TaskName)
	case engine.EventStatusChanged:
		logger.Info("status changed", "task", ev.TaskID, "change", ev.Message)
	case engine.EventPersistenceFailed:
		logger.Error("failed to save tasks", "error", ev.Err)
	}
}
