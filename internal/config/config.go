// Package config loads application configuration: database location,
// background intervals, logging, and the optional remote sync endpoint.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Remote configures the remote sync service. An empty BaseURL means local
// mode: the sync engine is not started and all data stays on this machine.
type Remote struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// Config is the full application configuration.
type Config struct {
	DBPath        string        `mapstructure:"db_path"`
	LogPath       string        `mapstructure:"log_path"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	Remote        Remote        `mapstructure:"remote"`

	// Path the config was loaded from; the field-schema provider watches
	// this file so schema edits apply without restart.
	Path string `mapstructure:"-"`
}

// DefaultPath returns the config file location, honoring $QD_CONFIG.
func DefaultPath() string {
	if p := os.Getenv("QD_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "quadrant", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_path", "tasks.db")
	v.SetDefault("log_path", "")
	v.SetDefault("flush_interval", 5*time.Second)
	v.SetDefault("sync_interval", 3*time.Minute)
}

// Load reads the configuration from path. A missing file is not an error;
// defaults apply and the application runs in local mode.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Path = path

	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 3 * time.Minute
	}
	return &cfg, nil
}
