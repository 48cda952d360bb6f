package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/formatter"
	"github.com/desertthunder/chime/internal/repositories"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Import reads an exchange file and merges or replaces the task collection.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: import file path is required", shared.ErrMissingArgument)
	}
	if err := r.loadConfig(cmd); err != nil {
		return err
	}

	file, err := repositories.ReadImportFile(path)
	if err != nil {
		return err
	}
	for _, rec := range file.Rejected {
		r.logger.Warn("skipping record", "index", rec.Index, "reason", rec.Reason)
	}
	if file.Repaired > 0 {
		r.logger.Info("audio paths resolved next to import file", "count", file.Repaired)
	}

	eng, done, err := r.openEngine(ctx)
	if err != nil {
		return err
	}
	defer done()

	mode := engine.ImportMerge
	if cmd.Bool("replace") {
		mode = engine.ImportReplace
	}

	result, err := eng.ImportTasks(file.Tasks, mode)
	for _, rej := range result.Rejected {
		r.logger.Warn("skipping task", "reason", rej)
	}
	if err != nil {
		return err
	}
	return r.writePlain("✓ Imported %d task(s) (%s), %d rejected, %d total\n",
		result.Added, result.Mode, len(file.Rejected)+len(result.Rejected), len(result.Tasks))
}

// Export writes the stored tasks in the requested format to a file or stdout.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	output := cmd.String("output")
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
	if len(rejected) > 0 {
		r.logger.Warn("stored records were skipped", "count", len(rejected))
	}

	if output != "" {
		if err := formatter.WriteExport(tasks, format, output); err != nil {
			return err
		}
		r.logger.Info("tasks exported", "path", output, "format", format, "count", len(tasks))
		return r.writePlain("✓ Exported %d task(s) to %s\n", len(tasks), output)
	}

	data, err := formatter.Export(tasks, format)
	if err != nil {
		return err
	}
	if cmd.Bool("render") {
		data = formatter.RenderMarkdown(data, terminalWidth())
	}
	return r.writePlain("%s", data)
}

// terminalWidth returns the width of stdout, or 80 when it is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
