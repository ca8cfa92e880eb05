package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file. Returns a populated Config
// struct or an error if loading or validation fails.
func Load() (*Config, error) {
	return load("")
}

// LoadFromFile is Load with an explicit config file path, used by tests to
// avoid changing the working directory.
func LoadFromFile(configPath string) (*Config, error) {
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("pool.workers", 0)
	v.SetDefault("pool.queue_size", 100)
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 8080)
	v.SetDefault("ui.enabled", false)
	v.SetDefault("log.level", "info")

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; everything has a default or an
		// environment binding.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TASKCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind the environment variables so they resolve even when
	// the key is absent from the config file.
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"pool.workers", "TASKCORE_POOL_WORKERS"},
		{"pool.queue_size", "TASKCORE_POOL_QUEUE_SIZE"},
		{"monitor.enabled", "TASKCORE_MONITOR_ENABLED"},
		{"monitor.port", "TASKCORE_MONITOR_PORT"},
		{"ui.enabled", "TASKCORE_UI_ENABLED"},
		{"log.level", "TASKCORE_LOG_LEVEL"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
