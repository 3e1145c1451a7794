package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ning0612/NuUpdater/internal/domain"
	"github.com/Ning0612/NuUpdater/internal/fetch"
)

// EnvPrefix prefixes environment overrides, e.g. NUUPDATER_FETCH_TIMEOUT
const EnvPrefix = "NUUPDATER"

// DefaultConfigPaths returns the default paths to search for config.yaml
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, AppName))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", AppName))
		paths = append(paths, filepath.Join(homeDir, "."+AppName))
	}

	return paths
}

// DefaultStateDir is the per-user directory for settings, history and PID file
func DefaultStateDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, AppName)
	}
	return "." + AppName
}

func setDefaults(v *viper.Viper) {
	stateDir := DefaultStateDir()

	v.SetDefault("settings.path", filepath.Join(stateDir, "settings.json"))

	v.SetDefault("fetch.timeout", fetch.DefaultTimeout)
	v.SetDefault("fetch.max_body_bytes", int64(fetch.DefaultMaxBodyBytes))
	v.SetDefault("fetch.concurrency", 0)
	v.SetDefault("fetch.host_interval", time.Duration(0))
	v.SetDefault("fetch.user_agent", fetch.DefaultUserAgent)

	v.SetDefault("schedule.tick", time.Second)
	v.SetDefault("schedule.cooldown", 2*time.Hour)

	v.SetDefault("state.dir", stateDir)
	v.SetDefault("state.history_limit", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file.enabled", false)
	v.SetDefault("logging.file.path", filepath.Join(stateDir, "logs", AppName+".log"))
	v.SetDefault("logging.file.max_size_mb", 10)
	v.SetDefault("logging.file.max_age_days", 30)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.addr", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration. With an empty path the default locations are
// searched for config.yaml, and finding none yields the defaults.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(ExpandPath(path))
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string on top of the defaults
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	cfg.Source = v.ConfigFileUsed()
	cfg.Settings.Path = ExpandPath(cfg.Settings.Path)
	cfg.State.Dir = ExpandPath(cfg.State.Dir)
	cfg.Logging.File.Path = ExpandPath(cfg.Logging.File.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
