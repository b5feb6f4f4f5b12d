package runner

import (
	"time"

	"github.com/smallbiznis/workforce/internal/config"
)

// Config controls the recovery loop.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchLimit  int
	LockTTL     time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 30 * time.Second,
		BatchLimit:  10,
		LockTTL:     10 * time.Minute,
		JobTimeout:  30 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = defaults.BatchLimit
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Runner.Enabled,
		RunInterval: cfg.Runner.RunInterval,
		BatchLimit:  cfg.Runner.BatchLimit,
	}.withDefaults()
}
