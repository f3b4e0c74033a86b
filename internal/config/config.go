// Package config loads server configuration from an optional YAML file and
// DEVTOOLBOX_* environment variables. Env overrides file, file overrides
// defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds everything the server needs at startup.
type Config struct {
	// Port the HTTP server listens on.
	Port int `mapstructure:"port"`

	// DBPath is the SQLite file backing the KV store.
	DBPath string `mapstructure:"db_path"`

	// BaseURL is the public origin used to derive share links.
	BaseURL string `mapstructure:"base_url"`

	// JWTSecret signs bearer credentials. Required to serve.
	JWTSecret string `mapstructure:"jwt_secret"`

	// RatePerSecond and RateBurst bound requests per client IP.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

// Load reads configuration. cfgFile may be empty, in which case
// devtoolbox.yaml is looked up in the working directory and ~/.devtoolbox;
// a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "data/devtoolbox.db")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("rate_per_second", 20.0)
	v.SetDefault("rate_burst", 40)
	// No usable default, but the key must be registered or Unmarshal
	// ignores an env-only DEVTOOLBOX_JWT_SECRET.
	v.SetDefault("jwt_secret", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("devtoolbox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.devtoolbox")
	}

	v.SetEnvPrefix("DEVTOOLBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
		// No config file is fine; defaults plus env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("config: jwt_secret is required (set DEVTOOLBOX_JWT_SECRET)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d is out of range", c.Port)
	}
	return nil
}
