// Package config manages application configuration from environment variables,
// config files, and default values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with CHATLINE_ (e.g., CHATLINE_SERVER_ADDR)
// or through config.yaml.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"required,min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,min=1s"`
}

// DatabaseConfig controls the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// IngestConfig controls the batch payload processor.
type IngestConfig struct {
	PayloadDir string `mapstructure:"payload_dir" validate:"required"`
}

// SchedulerConfig controls scheduled maintenance tasks. Schedules are cron
// expressions; an empty schedule disables the task.
type SchedulerConfig struct {
	MaintenanceSchedule string `mapstructure:"maintenance_schedule"`
}

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. The YAML file at configPath (optional)
// 3. CHATLINE_* environment variables
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CHATLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Allow missing config file; defaults and env cover everything.
	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", true)

	viper.SetDefault("server.addr", ":5001")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	viper.SetDefault("database.path", "chatline.db")

	viper.SetDefault("ingest.payload_dir", "./payloads")

	// Daily at 04:00.
	viper.SetDefault("scheduler.maintenance_schedule", "0 4 * * *")
}
