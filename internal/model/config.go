package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig holds the lifecycle engine tunables.
type EngineConfig struct {
	// StalenessWindowMin is how long (minutes) a dismissed thread stays
	// merge-eligible before a new arrival starts a fresh entry.
	StalenessWindowMin int `mapstructure:"staleness_window_min" yaml:"staleness_window_min"`

	// DismissedVisibleMin is how long (minutes) dismissed entries remain
	// in the live view before falling out.
	DismissedVisibleMin int `mapstructure:"dismissed_visible_min" yaml:"dismissed_visible_min"`

	// HistoryRetentionDays is how long expired/dismissed history rows are
	// kept before the sweeper removes them.
	HistoryRetentionDays int `mapstructure:"history_retention_days" yaml:"history_retention_days"`
}

// SweepConfig controls the retention sweeper schedule.
type SweepConfig struct {
	// Cron is a standard five-field cron expression. Empty means hourly.
	Cron string `mapstructure:"cron" yaml:"cron"`

	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AppConfig is the top-level daemon configuration.
type AppConfig struct {
	// DatabasePath is the SQLite database location. Empty means the
	// default under the user config directory.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Sweep  SweepConfig  `mapstructure:"sweep" yaml:"sweep"`
}

// StalenessWindow returns the dismissed-merge window as a duration.
func (c *AppConfig) StalenessWindow() time.Duration {
	return time.Duration(c.Engine.StalenessWindowMin) * time.Minute
}

// DismissedVisibility returns the live-view visibility window for
// dismissed entries.
func (c *AppConfig) DismissedVisibility() time.Duration {
	return time.Duration(c.Engine.DismissedVisibleMin) * time.Minute
}

// HistoryRetention returns the history retention horizon.
func (c *AppConfig) HistoryRetention() time.Duration {
	return time.Duration(c.Engine.HistoryRetentionDays) * 24 * time.Hour
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/snoozed/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "snoozed", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		LogLevel: "info",
		Engine: EngineConfig{
			StalenessWindowMin:   240,
			DismissedVisibleMin:  240,
			HistoryRetentionDays: 7,
		},
		Sweep: SweepConfig{
			Cron:    "0 * * * *",
			Enabled: true,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("log_level", "info")
	v.SetDefault("engine.staleness_window_min", 240)
	v.SetDefault("engine.dismissed_visible_min", 240)
	v.SetDefault("engine.history_retention_days", 7)
	v.SetDefault("sweep.cron", "0 * * * *")
	v.SetDefault("sweep.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Engine.HistoryRetentionDays < 1 {
		cfg.Engine.HistoryRetentionDays = 1
	} else if cfg.Engine.HistoryRetentionDays > 7 {
		cfg.Engine.HistoryRetentionDays = 7
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database_path", cfg.DatabasePath)
	v.Set("log_level", cfg.LogLevel)
	v.Set("engine", cfg.Engine)
	v.Set("sweep", cfg.Sweep)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
