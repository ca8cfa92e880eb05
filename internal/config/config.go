package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Pool    PoolConfig    `mapstructure:"pool"    validate:"required"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	UI      UIConfig      `mapstructure:"ui"`
	Log     LogConfig     `mapstructure:"log"     validate:"required"`
}

// PoolConfig contains the worker-pool settings used by the background
// executor.
type PoolConfig struct {
	// Workers is the number of pool goroutines. Zero means one worker per
	// CPU core.
	Workers   int `mapstructure:"workers"    validate:"gte=0"`
	QueueSize int `mapstructure:"queue_size" validate:"gt=0"`
}

// MonitorConfig contains the settings of the optional HTTP monitor server.
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"required_if=Enabled true,omitempty,gt=0,lt=65536"`
}

// UIConfig controls the interactive terminal task panel.
type UIConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig contains the logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}
