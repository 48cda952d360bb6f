// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/chime/internal/formatter"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// taskFlags are the editable task fields shared by add and edit.
func taskFlags(required bool) []cli.Flag {
	return []cli.Flag{
		configFlag(),
		&cli.StringFlag{
			Name:     "name",
			Aliases:  []string{"n"},
			Usage:    "Task name",
			Required: required,
		},
		&cli.StringFlag{
			Name:     "start",
			Aliases:  []string{"s"},
			Usage:    "Start time (HH:MM or HH:MM:SS)",
			Required: required,
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "End time (HH:MM or HH:MM:SS); derived from the audio length when omitted",
		},
		&cli.StringFlag{
			Name:     "schedule",
			Usage:    `Weekdays ("Mon, Wed") or a date (YYYY-MM-DD)`,
			Required: required,
		},
		&cli.StringFlag{
			Name:     "audio",
			Aliases:  []string{"a"},
			Usage:    "Path to the audio file",
			Required: required,
		},
		&cli.IntFlag{
			Name:  "volume",
			Usage: "Playback volume (0-100)",
		},
	}
}

// setupCommand writes the default configuration and prepares the database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the SQLite database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

// taskCommand handles task collection management
func taskCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "task",
		Aliases: []string{"t"},
		Usage:   "Manage scheduled tasks",
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Add a task",
				Flags:  taskFlags(true),
				Action: r.TaskAdd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List tasks",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.TaskList,
			},
			{
				Name:  "edit",
				Usage: "Edit a task; omitted fields keep their values",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  taskFlags(false),
				Action: r.TaskEdit,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete tasks",
				ArgsUsage: "<id>...",
				Flags:     []cli.Flag{configFlag()},
				Action:    r.TaskDelete,
			},
			{
				Name:  "copy",
				Usage: "Duplicate a task",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.TaskCopy,
			},
			{
				Name:      "pause-today",
				Usage:     "Skip tasks for the rest of today, or undo it",
				ArgsUsage: "<id>...",
				Flags:     []cli.Flag{configFlag()},
				Action:    r.TaskPauseToday,
			},
			{
				Name:  "volume",
				Usage: "Change a task's volume",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "volume"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.TaskVolume,
			},
		},
	}
}

// importCommand loads tasks from an exchange file
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import tasks from a JSON file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "path"},
		},
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "replace",
				Usage: "Replace the task collection instead of appending",
			},
		},
		Action: r.Import,
	}
}

// exportCommand writes tasks in one of the supported formats
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export tasks",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (" + strings.Join(formatter.Formats, ", ") + ")",
				Value:   formatter.FormatJSON,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path",
			},
			&cli.BoolFlag{
				Name:  "render",
				Usage: "Render markdown for the terminal",
			},
		},
		Action: r.Export,
	}
}

// playCommand plays a single task in the foreground
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play a task now and wait for it to finish",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  []cli.Flag{configFlag()},
		Action: r.Play,
	}
}

// runCommand runs the scheduler without a UI
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the scheduler until interrupted",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Run,
	}
}

// tuiCommand starts the interactive terminal UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Launch interactive terminal UI",
		Flags:  []cli.Flag{configFlag()},
		Action: r.TUI,
	}
}
