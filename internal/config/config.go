package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Executor ExecutorConfig `mapstructure:"executor" validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// ExecutorConfig contains all task executor related configuration settings.
type ExecutorConfig struct {
	// MaxWorkers caps concurrent workers; 0 means unbounded.
	MaxWorkers int `mapstructure:"max_workers" validate:"gte=0"`

	// QueueSize is the pending queue buffer size.
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`

	// KeepAlive is how long an idle worker waits for work before terminating.
	KeepAlive time.Duration `mapstructure:"keep_alive" validate:"gte=0"`

	// ResultRetention is how long completed results stay queryable.
	ResultRetention time.Duration `mapstructure:"result_retention" validate:"gte=0"`
}
