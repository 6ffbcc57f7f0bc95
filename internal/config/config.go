package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

//go:embed default.yaml
var defaultYAML []byte

// DefaultPath is the user configuration file used when none is given
const DefaultPath = "applogger.yaml"

// ErrConfigMissing is returned when a required setting is absent from both
// the user file and the bundled default
var ErrConfigMissing = errors.New("required configuration setting missing")

// MissingKeyError names the setting that could not be resolved
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfigMissing, e.Key)
}

func (e *MissingKeyError) Unwrap() error {
	return ErrConfigMissing
}

// Config is the resolved configuration. It is a snapshot: changes to the
// file take effect on the next start.
type Config struct {
	Path              string
	IdleTime          time.Duration
	CheckInterval     time.Duration
	MaxQueueEntries   int
	MaxQueueTime      time.Duration
	MaxPendingEntries int
	Machine           string
	StagingFile       string
	History           HistoryConfig
	Control           ControlConfig
	Log               LogConfig
}

// HistoryConfig controls the local activity history database
type HistoryConfig struct {
	Enabled bool
	Path    string
}

// ControlConfig controls the localhost control API
type ControlConfig struct {
	Enabled bool
	Port    int
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level  string
	Format string
}

// fileConfig mirrors the YAML layout. Every field is a pointer so a key
// that is absent from a file can be told apart from a zero value.
type fileConfig struct {
	Path              *string  `yaml:"path"`
	IdleTime          *float64 `yaml:"idle_time"`
	CheckInterval     *float64 `yaml:"check_interval"`
	MaxQueueEntries   *int     `yaml:"max_queue_entries"`
	MaxQueueTime      *float64 `yaml:"max_queue_time"`
	MaxPendingEntries *int     `yaml:"max_pending_entries"`
	Machine           *string  `yaml:"machine"`
	StagingFile       *string  `yaml:"staging_file"`
	History           struct {
		Enabled *bool   `yaml:"enabled"`
		Path    *string `yaml:"path"`
	} `yaml:"history"`
	Control struct {
		Enabled *bool `yaml:"enabled"`
		Port    *int  `yaml:"port"`
	} `yaml:"control"`
	Log struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

// envOverrides are applied after the files are merged
type envOverrides struct {
	Path      string `env:"APPLOG_PATH"`
	LogLevel  string `env:"APPLOG_LOG_LEVEL"`
	LogFormat string `env:"APPLOG_LOG_FORMAT"`
}

// DefaultYAML returns the bundled default configuration
func DefaultYAML() []byte {
	return bytes.Clone(defaultYAML)
}

// LoadConfig reads the user configuration at path over the bundled default,
// key by key. A missing user file is created from the default so it can be
// edited.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var def fileConfig
	if err := cleanenv.ParseYAML(bytes.NewReader(defaultYAML), &def); err != nil {
		return nil, fmt.Errorf("failed to parse default config: %w", err)
	}

	var user fileConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := writeDefault(path); err != nil {
			return nil, err
		}
		user = def
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := cleanenv.ParseYAML(bytes.NewReader(data), &user); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg, err := merge(&user, &def)
	if err != nil {
		return nil, err
	}

	var env envOverrides
	if err := cleanenv.ReadEnv(&env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, defaultYAML, 0o644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	return nil
}

func merge(user, def *fileConfig) (*Config, error) {
	var errs []error
	cfg := &Config{
		Path:              pick("path", user.Path, def.Path, &errs),
		IdleTime:          seconds(pick("idle_time", user.IdleTime, def.IdleTime, &errs)),
		CheckInterval:     seconds(pick("check_interval", user.CheckInterval, def.CheckInterval, &errs)),
		MaxQueueEntries:   pick("max_queue_entries", user.MaxQueueEntries, def.MaxQueueEntries, &errs),
		MaxQueueTime:      seconds(pick("max_queue_time", user.MaxQueueTime, def.MaxQueueTime, &errs)),
		MaxPendingEntries: pick("max_pending_entries", user.MaxPendingEntries, def.MaxPendingEntries, &errs),
		Machine:           pick("machine", user.Machine, def.Machine, &errs),
		StagingFile:       pick("staging_file", user.StagingFile, def.StagingFile, &errs),
		History: HistoryConfig{
			Enabled: pick("history.enabled", user.History.Enabled, def.History.Enabled, &errs),
			Path:    pick("history.path", user.History.Path, def.History.Path, &errs),
		},
		Control: ControlConfig{
			Enabled: pick("control.enabled", user.Control.Enabled, def.Control.Enabled, &errs),
			Port:    pick("control.port", user.Control.Port, def.Control.Port, &errs),
		},
		Log: LogConfig{
			Level:  pick("log.level", user.Log.Level, def.Log.Level, &errs),
			Format: pick("log.format", user.Log.Format, def.Log.Format, &errs),
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// pick returns the user value when set, else the default value. A key set
// in neither is recorded as missing.
func pick[T any](key string, user, def *T, errs *[]error) T {
	if user != nil {
		return *user
	}
	if def != nil {
		return *def
	}
	*errs = append(*errs, &MissingKeyError{Key: key})
	var zero T
	return zero
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c *Config) applyEnv(env envOverrides) {
	if env.Path != "" {
		c.Path = env.Path
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Log.Format = env.LogFormat
	}
}

// Validate checks that the configuration can drive the monitor
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("path must not be empty")
	}
	if c.IdleTime <= 0 {
		return fmt.Errorf("idle_time must be positive")
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if c.MaxQueueEntries < 0 {
		return fmt.Errorf("max_queue_entries must not be negative")
	}
	if c.MaxQueueTime <= 0 {
		return fmt.Errorf("max_queue_time must be positive")
	}
	if c.MaxPendingEntries != 0 && c.MaxPendingEntries <= c.MaxQueueEntries {
		return fmt.Errorf("max_pending_entries must exceed max_queue_entries or be 0 to disable the bound")
	}
	if c.StagingFile == "" {
		return fmt.Errorf("staging_file must not be empty")
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path must be set when history is enabled")
	}
	if c.Control.Enabled && (c.Control.Port <= 0 || c.Control.Port > 65535) {
		return fmt.Errorf("control.port must be between 1 and 65535")
	}
	return nil
}
