// Package config loads server configuration from a config file and the
// environment. Values missing everywhere fall back to the defaults below;
// the engine itself treats missing per-instance configuration as disabled
// features, so nothing here is required at startup.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all server-level configuration values.
type Config struct {
	AppPort           string        `mapstructure:"APP_PORT"`
	DBPath            string        `mapstructure:"DB_PATH"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
	SchedulerEnabled  bool          `mapstructure:"SCHEDULER_ENABLED"`
}

// Load reads config.yaml (current directory or ./config) and the
// environment, environment winning.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("DB_PATH", "elective.db")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("RECONCILE_INTERVAL", 15*time.Minute)
	viper.SetDefault("SCHEDULER_ENABLED", true)

	// A missing config file is fine; environment and defaults cover it.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
