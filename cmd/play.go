package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/models"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Play starts a task immediately and reports progress until it finishes or the process is interrupted.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id is required", shared.ErrMissingArgument)
	}
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

	if err := eng.PlayTask(id); err != nil {
		return err
	}
	info, ok := eng.Active()
	if !ok {
		return fmt.Errorf("%w: task %s did not start", shared.ErrDeviceFailure, id)
	}
	r.logger.Info("playing", "task", id, "path", info.Path, "volume", info.Volume)

	live := isTerminal(r.output)
	for {
		select {
		case <-ctx.Done():
			if live {
				r.writePlain("\n")
			}
			r.logger.Info("interrupted, stopping playback", "task", id)
			return eng.StopActive()

		case ev, ok := <-eng.Events():
			if !ok {
				return nil
			}
			if ev.TaskKey != info.TaskKey {
				continue
			}
			switch ev.Kind {
			case engine.EventProgress:
				if live {
					r.writePlain("\r▶ %s  %s / %s  %5.1f%%", ev.TaskName,
						shared.FormatDuration(ev.Elapsed), shared.FormatDuration(ev.Duration), ev.Percent)
				}
			case engine.EventCompleted:
				if live {
					r.writePlain("\n")
				}
				return r.writePlain("✓ %s\n", ev.Message)
			case engine.EventStatusChanged:
				r.logger.Debug("status changed", "task", ev.TaskID, "status", ev.Status)
				switch ev.Status {
				case models.StatusError:
					return fmt.Errorf("%w: %s", shared.ErrDeviceFailure, ev.Message)
				case models.StatusWaiting, models.StatusPausedToday:
					return nil
				}
			}
		}
	}
}

// isTerminal reports whether w is a file attached to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
