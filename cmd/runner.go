package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/chime/internal/engine"
	"github.com/desertthunder/chime/internal/playback"
	"github.com/desertthunder/chime/internal/repositories"
	"github.com/desertthunder/chime/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
	device playback.Device
	store  repositories.TaskStore
	now    func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Device and Store override the ones built from the configuration.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
	Device playback.Device
	Store  repositories.TaskStore
	Now    func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
		device: opts.Device,
		store:  opts.Store,
		now:    opts.Now,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, taskCommand, importCommand, exportCommand, playCommand, runCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the file named by the --config flag and applies the log level.
//
// A missing default config.toml keeps the current configuration; a missing file named explicitly is an error.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return err
			}
			r.config = config
		} else if cmd.IsSet("config") {
			return fmt.Errorf("%w: %s", shared.ErrMissingConfig, path)
		} else {
			r.logger.Debug("config file not found, using defaults", "path", path)
		}
	}
	return shared.ApplyLogLevel(r.logger, r.config.Log.Level)
}

// openStore returns the configured task store and a function releasing it.
func (r *Runner) openStore() (repositories.TaskStore, func(), error) {
	if r.store != nil {
		return r.store, func() {}, nil
	}

	switch r.config.Store.Driver {
	case shared.StoreSQLite:
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repositories.NewSQLiteStore(db), func() { db.Close() }, nil
	default:
		return repositories.NewJSONStore(r.config.Store.Path), func() {}, nil
	}
}

// openDevice returns the configured playback device.
func (r *Runner) openDevice() playback.Device {
	if r.device != nil {
		return r.device
	}

	pc := r.config.Playback
	if pc.Device == shared.DeviceSimulated {
		return playback.NewSimDevice(pc.FallbackDuration)
	}

	dev := playback.NewExecDevice(pc.Player, pc.Probe)
	if err := dev.Available(); err != nil {
		r.logger.Warn("player not available, falling back to simulated playback", "player", pc.Player, "error", err)
		return playback.NewSimDevice(pc.FallbackDuration)
	}
	return dev
}

// openEngine builds and starts an engine over the configured store and device.
//
// The returned function closes the engine and releases the store.
func (r *Runner) openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	store, release, err := r.openStore()
	if err != nil {
		return nil, nil, err
	}

	pc := r.config.Playback
	device := r.openDevice()
	ctrl := playback.NewController(device, playback.Options{
		ProgressInterval: pc.ProgressInterval,
		JoinTimeout:      pc.JoinTimeout,
		EventBuffer:      pc.EventBuffer,
		Logger:           r.logger,
	})

	var prober playback.Prober
	if p, ok := device.(playback.Prober); ok {
		prober = p
	}

	eng := engine.New(store, ctrl, engine.Options{
		Tolerance:     r.config.Scheduler.Tolerance,
		DefaultVolume: pc.DefaultVolume,
		EventBuffer:   pc.EventBuffer,
		Prober:        prober,
		Fallback:      pc.FallbackDuration,
		Now:           r.now,
		Logger:        r.logger,
	})

	if err := eng.Start(ctx); err != nil {
		ctrl.Close()
		release()
		return nil, nil, err
	}

	closeFn := func() {
		if err := eng.Close(); err != nil {
			r.logger.Warn("engine close failed", "error", err)
		}
		release()
	}
	return eng, closeFn, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
