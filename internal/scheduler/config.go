package scheduler

import (
	"time"
)

// Config controls scheduler cadence and batch sizes.
type Config struct {
	RunInterval time.Duration
	BatchSize   int
	// EnabledJobs restricts the run to the named jobs. Empty means all
	// jobs run (monolith mode).
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 15 * time.Minute,
		BatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
