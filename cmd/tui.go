package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/desertthunder/chime/internal/ui"
	"github.com/urfave/cli/v3"
)

// defaultTUILog receives log output while the TUI owns the terminal.
const defaultTUILog = "./tmp/chime-tui.log"

// TUI launches the interactive terminal UI with the scheduler running.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	path := r.config.Log.File
	if path == "" {
		path = defaultTUILog
	}
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer closer.Close()
	if err := shared.ApplyLogLevel(fileLogger, r.config.Log.Level); err != nil {
		return err
	}
	r.SetLogger(fileLogger)

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

	model := ui.NewModel(eng)
	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
