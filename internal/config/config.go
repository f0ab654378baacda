// Package config loads CLI configuration from a YAML file, .env and
// ASSETGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "ASSETGRAPH"

// Config holds settings shared by every command.
type Config struct {
	DBDriver string `mapstructure:"DB_DRIVER" validate:"required,oneof=sqlite postgres"`
	DBDSN    string `mapstructure:"DB_DSN" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	MaxRetries   int           `mapstructure:"MAX_RETRIES" validate:"gte=0,lte=20"`
	BatchTimeout time.Duration `mapstructure:"BATCH_TIMEOUT" validate:"gte=0"`
}

var (
	validate = validator.New(validator.WithRequiredStructEnabled())

	keys = []string{
		"DB_DRIVER",
		"DB_DSN",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"MAX_RETRIES",
		"BATCH_TIMEOUT",
	}
)

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DBDriver:     "sqlite",
		DBDSN:        "assetgraph.db",
		LogLevel:     "warn",
		LogFormat:    "console",
		MaxRetries:   3,
		BatchTimeout: 30 * time.Second,
	}
}

// Load reads configuration. An explicit path must exist; with an empty path
// an assetgraph.yaml in the working directory is used if present.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault("DB_DRIVER", d.DBDriver)
	v.SetDefault("DB_DSN", d.DBDSN)
	v.SetDefault("LOG_LEVEL", d.LogLevel)
	v.SetDefault("LOG_FORMAT", d.LogFormat)
	v.SetDefault("MAX_RETRIES", d.MaxRetries)
	v.SetDefault("BATCH_TIMEOUT", d.BatchTimeout.String())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("assetgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks field constraints. Commands call it again after applying
// flag overrides.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
