package scheduler

import (
	"errors"
	"time"

	"github.com/clearhour/clearhour/internal/config"
)

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

// Config tunes the scheduler run loop.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
	LockTTL     time.Duration
	// EnabledJobs restricts which jobs run; empty means all.
	EnabledJobs []string
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Hour
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 5 * time.Minute
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled: cfg.SchedulerEnabled,
	}.withDefaults()
}
