// Package config loads runtime configuration from an optional YAML file and
// PACEKEEPER_* environment variables, with sensible defaults for everything.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `mapstructure:"db_path"`
	// AppName tags sessions created by this process.
	AppName string `mapstructure:"app_name"`
	// UserID is the default session owner for a single-user install.
	UserID string `mapstructure:"user_id"`
	// BusRingSize bounds the recent-events buffer.
	BusRingSize int `mapstructure:"bus_ring_size"`
	// TickScale is the wall-clock length of one scheduling minute. Demos
	// shrink it to compress focus blocks.
	TickScale time.Duration `mapstructure:"tick_scale"`
	// BaseMultiplier seeds time calibration before any learning.
	BaseMultiplier float64 `mapstructure:"base_multiplier"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"log_format"`
}

// DefaultDBPath places the database under the user's home directory, falling
// back to the working directory when home cannot be resolved.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pacekeeper.db"
	}
	return filepath.Join(home, ".pacekeeper", "pacekeeper.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("app_name", "pacekeeper")
	v.SetDefault("user_id", "default")
	v.SetDefault("bus_ring_size", 100)
	v.SetDefault("tick_scale", time.Minute)
	v.SetDefault("base_multiplier", 1.5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load resolves configuration. Precedence, lowest to highest: built-in
// defaults, the config file (explicit path, or pacekeeper.yaml searched in
// "." and ~/.pacekeeper), then PACEKEEPER_* environment variables. A missing
// config file is not an error; a malformed one is.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PACEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("pacekeeper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pacekeeper"))
		}
		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.TickScale <= 0 {
		cfg.TickScale = time.Minute
	}
	return &cfg, nil
}
