package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Database  DatabaseConfig  `toml:"database"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Playback  PlaybackConfig  `toml:"playback"`
	Log       LogConfig       `toml:"log"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SchedulerConfig controls the tick loop.
type SchedulerConfig struct {
	TickInterval time.Duration `toml:"tick_interval"`
	Tolerance    time.Duration `toml:"tolerance"`
}

// PlaybackConfig controls the playback device and progress reporting.
type PlaybackConfig struct {
	Device           string        `toml:"device"`
	Player           string        `toml:"player"`
	Probe            string        `toml:"probe"`
	ProgressInterval time.Duration `toml:"progress_interval"`
	JoinTimeout      time.Duration `toml:"join_timeout"`
	DefaultVolume    int           `toml:"default_volume"`
	EventBuffer      int           `toml:"event_buffer"`
	FallbackDuration time.Duration `toml:"fallback_duration"`
}

// LogConfig controls log level and destination.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"

	DeviceExec      = "exec"
	DeviceSimulated = "simulated"
)

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreJSON, StoreSQLite:
	default:
		return fmt.Errorf("%w: store.driver must be %q or %q, got %q", ErrInvalidConfig, StoreJSON, StoreSQLite, c.Store.Driver)
	}
	if c.Store.Driver == StoreJSON && c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is required for the json driver", ErrInvalidConfig)
	}
	if c.Store.Driver == StoreSQLite && c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required for the sqlite driver", ErrInvalidConfig)
	}

	switch c.Playback.Device {
	case DeviceExec, DeviceSimulated:
	default:
		return fmt.Errorf("%w: playback.device must be %q or %q, got %q", ErrInvalidConfig, DeviceExec, DeviceSimulated, c.Playback.Device)
	}

	if c.Scheduler.TickInterval <= 0 {
		return fmt.Errorf("%w: scheduler.tick_interval must be positive", ErrInvalidConfig)
	}
	if c.Playback.ProgressInterval <= 0 || c.Playback.JoinTimeout <= 0 {
		return fmt.Errorf("%w: playback intervals must be positive", ErrInvalidConfig)
	}
	if c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 100 {
		return fmt.Errorf("%w: playback.default_volume must be within 0-100", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
