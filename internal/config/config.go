package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/logger"
)

// AppName names the per-user config directory and file prefixes
const AppName = "nuupdater"

// Config represents the complete application configuration
type Config struct {
	Settings SettingsConfig `mapstructure:"settings"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	State    StateConfig    `mapstructure:"state"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`

	// Source is the file the config was read from, empty for defaults
	Source string `mapstructure:"-"`
}

// SettingsConfig locates the persisted user settings
type SettingsConfig struct {
	Path string `mapstructure:"path"`
}

// FetchConfig tunes the HTTP client
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	Concurrency  int           `mapstructure:"concurrency"` // 0 = one goroutine per satellite
	HostInterval time.Duration `mapstructure:"host_interval"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// ScheduleConfig tunes the countdown
type ScheduleConfig struct {
	Tick     time.Duration `mapstructure:"tick"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// StateConfig locates runtime state
type StateConfig struct {
	Dir          string `mapstructure:"dir"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures the rotating log file
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig configures the Prometheus endpoint; empty Addr disables it
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Validate checks ranges and required values
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Settings.Path) == "" {
		return fmt.Errorf("%w: settings.path cannot be empty", domain.ErrConfigInvalid)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("%w: fetch.timeout must be positive, got %v", domain.ErrConfigInvalid, c.Fetch.Timeout)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: fetch.max_body_bytes must be positive", domain.ErrConfigInvalid)
	}
	if c.Fetch.Concurrency < 0 {
		return fmt.Errorf("%w: fetch.concurrency cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Fetch.HostInterval < 0 {
		return fmt.Errorf("%w: fetch.host_interval cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Schedule.Tick <= 0 {
		return fmt.Errorf("%w: schedule.tick must be positive, got %v", domain.ErrConfigInvalid, c.Schedule.Tick)
	}
	if c.Schedule.Cooldown < time.Second {
		return fmt.Errorf("%w: schedule.cooldown must be at least 1s, got %v", domain.ErrConfigInvalid, c.Schedule.Cooldown)
	}
	if strings.TrimSpace(c.State.Dir) == "" {
		return fmt.Errorf("%w: state.dir cannot be empty", domain.ErrConfigInvalid)
	}
	if c.State.HistoryLimit < 0 {
		return fmt.Errorf("%w: state.history_limit cannot be negative", domain.ErrConfigInvalid)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown logging.level %q", domain.ErrConfigInvalid, c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging.format %q", domain.ErrConfigInvalid, c.Logging.Format)
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		return fmt.Errorf("%w: logging.file.path required when file logging is enabled", domain.ErrConfigInvalid)
	}
	return nil
}

// HistoryPath is the cycle history database file
func (c *Config) HistoryPath() string {
	return filepath.Join(c.State.Dir, AppName+".db")
}

// PIDPath is the daemon PID file
func (c *Config) PIDPath() string {
	return filepath.Join(c.State.Dir, "daemon.pid")
}

// LoggerConfig converts the logging section. Console output goes to stderr
// so command output on stdout stays clean.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.Config{
		Level:   logger.ParseLevel(c.Logging.Level),
		Format:  logger.ParseFormat(c.Logging.Format),
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr}},
		File: logger.FileConfig{
			Enabled:    c.Logging.File.Enabled,
			Path:       c.Logging.File.Path,
			MaxSizeMB:  c.Logging.File.MaxSizeMB,
			MaxAgeDays: c.Logging.File.MaxAgeDays,
			MaxBackups: c.Logging.File.MaxBackups,
			Compress:   c.Logging.File.Compress,
		},
	}
	if lc.File.Enabled {
		lc.Outputs = append(lc.Outputs, logger.OutputConfig{Type: logger.OutputFile})
	}
	return lc
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
