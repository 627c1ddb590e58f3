// Package config loads outpost configuration from file, environment, and
// flags via viper.
//
// Resolution order (lowest to highest): built-in defaults, the YAML config
// file ($OUTPOST_HOME/config.yaml by default), OUTPOST_* environment
// variables, then any flags bound by the CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved outpost configuration.
type Config struct {
	// DBPath is the SQLite queue database file.
	DBPath string `mapstructure:"db_path"`

	// SpoolDir is the directory watched for record envelopes.
	SpoolDir string `mapstructure:"spool_dir"`

	// LogFile, if set, receives daemon logs with rotation.
	LogFile string `mapstructure:"log_file"`

	Backend   Backend   `mapstructure:"backend"`
	Sync      Sync      `mapstructure:"sync"`
	Dashboard Dashboard `mapstructure:"dashboard"`
}

// Backend configures the authoritative data service.
type Backend struct {
	// BaseURL is the service root, e.g. https://erp.example.com/api.
	BaseURL string `mapstructure:"base_url"`

	// Token is the bearer token sent on every request.
	Token string `mapstructure:"token"`

	// HealthURL is the endpoint probed for connectivity. Defaults to
	// BaseURL + /health when empty.
	HealthURL string `mapstructure:"health_url"`
}

// Sync configures trigger timing.
type Sync struct {
	// Interval is the coarse periodic sync trigger.
	Interval time.Duration `mapstructure:"interval"`

	// HealthInterval is how often connectivity is probed.
	HealthInterval time.Duration `mapstructure:"health_interval"`

	// RetryInitial is the first backoff delay after a failing pass.
	RetryInitial time.Duration `mapstructure:"retry_initial"`

	// RetryMax caps the backoff delay between retry passes.
	RetryMax time.Duration `mapstructure:"retry_max"`
}

// Dashboard configures the local status server.
type Dashboard struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DefaultDir returns the outpost home directory (~/.outpost, or
// $OUTPOST_HOME when set).
func DefaultDir() string {
	if dir := os.Getenv("OUTPOST_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".outpost"
	}
	return filepath.Join(home, ".outpost")
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := DefaultDir()
	return &Config{
		DBPath:   filepath.Join(dir, "queue.db"),
		SpoolDir: filepath.Join(dir, "spool"),
		Sync: Sync{
			Interval:       5 * time.Minute,
			HealthInterval: 15 * time.Second,
			RetryInitial:   5 * time.Second,
			RetryMax:       5 * time.Minute,
		},
		Dashboard: Dashboard{
			Enabled: false,
			Port:    8321,
		},
	}
}

// Load resolves the configuration from defaults, the config file (if
// present), and the environment.
func Load(path string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")

	// Every key needs a default registered, even an empty one: viper only
	// surfaces env values through Unmarshal for keys it already knows about.
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("spool_dir", def.SpoolDir)
	v.SetDefault("log_file", "")
	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.health_url", "")
	v.SetDefault("sync.interval", def.Sync.Interval)
	v.SetDefault("sync.health_interval", def.Sync.HealthInterval)
	v.SetDefault("sync.retry_initial", def.Sync.RetryInitial)
	v.SetDefault("sync.retry_max", def.Sync.RetryMax)
	v.SetDefault("dashboard.enabled", def.Dashboard.Enabled)
	v.SetDefault("dashboard.port", def.Dashboard.Port)

	v.SetEnvPrefix("OUTPOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
		if err := v.ReadInConfig(); err != nil {
			// Missing default config is fine; everything has defaults
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Backend.HealthURL == "" && cfg.Backend.BaseURL != "" {
		cfg.Backend.HealthURL = strings.TrimRight(cfg.Backend.BaseURL, "/") + "/health"
	}

	return &cfg, nil
}

// WriteDefault writes the built-in configuration as YAML to path, creating
// parent directories. It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	def := Default()

	// Durations are written as strings ("5m") so the file stays editable.
	data, err := yaml.Marshal(map[string]interface{}{
		"db_path":   def.DBPath,
		"spool_dir": def.SpoolDir,
		"log_file":  "",
		"backend": map[string]interface{}{
			"base_url":   "",
			"token":      "",
			"health_url": "",
		},
		"sync": map[string]interface{}{
			"interval":        def.Sync.Interval.String(),
			"health_interval": def.Sync.HealthInterval.String(),
			"retry_initial":   def.Sync.RetryInitial.String(),
			"retry_max":       def.Sync.RetryMax.String(),
		},
		"dashboard": map[string]interface{}{
			"enabled": def.Dashboard.Enabled,
			"port":    def.Dashboard.Port,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
