// Package config loads scanforge's runtime configuration: the database
// backend to persist jobs in, scheduler tuning, and the metrics listener.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the fully-resolved runtime configuration, merged from defaults,
// an optional YAML file, environment variables (SCANFORGE_ prefixed) and
// command-line flags, in increasing priority order.
type Config struct {
	LogLevel         string `mapstructure:"log_level"`
	Driver           string `mapstructure:"driver"`
	DSN              string `mapstructure:"dsn"`
	MaxParallelTasks int    `mapstructure:"max_parallel_tasks"`
	MetricsAddr      string `mapstructure:"metrics_addr"`

	// RemoteServer, when set, routes tool execution to a remote execution
	// host over HTTP instead of the local shell.
	RemoteServer string `mapstructure:"remote_server"`

	// Tools overrides where a tool binary lives and which extra arguments
	// every invocation carries, keyed by tool name.
	Tools map[string]ToolConfig `mapstructure:"tools"`
}

// ToolConfig is one tool's entry in the config file's tools section.
type ToolConfig struct {
	Path        string `mapstructure:"path"`
	DefaultArgs string `mapstructure:"default_args"`
}

// Load reads configuration from configPath (if it exists), environment
// variables, and whatever flags the caller has already bound into v.
// configPath may be empty, in which case only defaults/env/flags apply.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	v.SetDefault("log_level", "info")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("dsn", "scanforge.db")
	v.SetDefault("max_parallel_tasks", 5)
	v.SetDefault("metrics_addr", ":9090")

	v.SetEnvPrefix("scanforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "reading config file %q", configPath)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects a configuration that would fail later in a less obvious way.
func (c *Config) Validate() error {
	if c.Driver != "sqlite" && c.Driver != "postgres" {
		return errors.Errorf("unsupported driver %q, expected sqlite or postgres", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn must not be empty")
	}
	if c.MaxParallelTasks <= 0 {
		return errors.New("max_parallel_tasks must be positive")
	}
	return nil
}
