package scheduler

import (
	"time"

	appconfig "github.com/boostlane/boostlane/internal/config"
)

// Config controls scheduler intervals, batch sizes, and the retention
// windows handed to the archive sweep.
type Config struct {
	RunInterval      time.Duration
	SweepInterval    time.Duration
	BatchSize        int
	JobTimeout       time.Duration
	ArchiveRetention time.Duration
	PurgeRetention   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      10 * time.Minute,
		SweepInterval:    24 * time.Hour,
		BatchSize:        100,
		JobTimeout:       5 * time.Minute,
		ArchiveRetention: 7 * 24 * time.Hour,
		PurgeRetention:   7 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaults.SweepInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.ArchiveRetention <= 0 {
		c.ArchiveRetention = defaults.ArchiveRetention
	}
	if c.PurgeRetention <= 0 {
		c.PurgeRetention = defaults.PurgeRetention
	}
	return c
}

// ProvideConfig maps the application configuration onto the scheduler's
// own knobs.
func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		RunInterval:      cfg.Scheduler.RunInterval,
		SweepInterval:    cfg.Scheduler.SweepInterval,
		BatchSize:        cfg.Scheduler.BatchSize,
		JobTimeout:       cfg.Scheduler.JobTimeout,
		ArchiveRetention: cfg.Billing.ArchiveRetention,
		PurgeRetention:   cfg.Billing.PurgeRetention,
	}.withDefaults()
}
