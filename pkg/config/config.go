// Package config loads the profiler knobs from a YAML file and PERFGRAPH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every recognized profiler option.
type Config struct {
	// Active is the master switch for timing collection.
	Active bool `yaml:"active" env:"PERFGRAPH_ACTIVE" env-default:"true"`

	LivePrintEnabled bool `yaml:"live_print_enabled" env:"PERFGRAPH_LIVE_PRINT" env-default:"true"`
	// LivePrintAll treats every section as if it had a live message.
	LivePrintAll bool `yaml:"live_print_all" env:"PERFGRAPH_LIVE_PRINT_ALL" env-default:"false"`
	// LivePrintTimeLimit is how long a section runs before it is announced.
	LivePrintTimeLimit time.Duration `yaml:"live_print_time_limit" env:"PERFGRAPH_LIVE_PRINT_TIME_LIMIT" env-default:"5s"`
	// LivePrintMemLimitMB is the memory growth that triggers an announcement.
	LivePrintMemLimitMB float64 `yaml:"live_print_mem_limit" env:"PERFGRAPH_LIVE_PRINT_MEM_LIMIT" env-default:"100"`

	MaxStackDepth   int `yaml:"max_stack_depth" env:"PERFGRAPH_MAX_STACK_DEPTH" env-default:"100"`
	MaxEventLogSize int `yaml:"max_event_log_size" env:"PERFGRAPH_MAX_EVENT_LOG_SIZE" env-default:"10000"`

	// TrackMemory samples resident memory on every push and pop.
	TrackMemory bool `yaml:"track_memory" env:"PERFGRAPH_TRACK_MEMORY" env-default:"false"`
	// PrintLevel is the default verbosity ceiling for reports.
	PrintLevel uint `yaml:"print_level" env:"PERFGRAPH_PRINT_LEVEL" env-default:"1"`
}

var (
	ErrStackDepth   = errors.New("max_stack_depth must be at least 1")
	ErrEventLogSize = errors.New("max_event_log_size must be at least 1")
	ErrNegative     = errors.New("live print limits must not be negative")
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Active:              true,
		LivePrintEnabled:    true,
		LivePrintTimeLimit:  5 * time.Second,
		LivePrintMemLimitMB: 100,
		MaxStackDepth:       100,
		MaxEventLogSize:     10000,
		PrintLevel:          1,
	}
}

// Load reads path (if non-empty) and then applies environment overrides.
// A missing file is not an error; environment and defaults still apply.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("cannot read config %q: %w", path, err)
			}
			return cfg, cfg.Validate()
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("cannot read config from environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the knobs that would otherwise break the recorder.
func (c Config) Validate() error {
	if c.MaxStackDepth < 1 {
		return ErrStackDepth
	}
	if c.MaxEventLogSize < 1 {
		return ErrEventLogSize
	}
	if c.LivePrintTimeLimit < 0 || c.LivePrintMemLimitMB < 0 {
		return ErrNegative
	}
	return nil
}

// Usage describes the environment variables understood by Load.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
