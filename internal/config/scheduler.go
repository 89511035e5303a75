package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvSchedulerEnabled            = "HARBOR_SCHEDULER_ENABLED"
	EnvSchedulerDailyInterval      = "HARBOR_SCHEDULER_DAILY_INTERVAL"
	EnvSchedulerWeeklyInterval     = "HARBOR_SCHEDULER_WEEKLY_INTERVAL"
	EnvSchedulerAutomationInterval = "HARBOR_SCHEDULER_AUTOMATION_INTERVAL"
)

// SchedulerConfig controls the periodic producer of insight and automation jobs.
// Enabled is a pointer so an overlay can switch the scheduler off.
type SchedulerConfig struct {
	Enabled            *bool  `toml:"enabled"`
	DailyInterval      string `toml:"daily_interval"`
	WeeklyInterval     string `toml:"weekly_interval"`
	AutomationInterval string `toml:"automation_interval"`
}

// IsEnabled reports whether the scheduler runs. Defaults to true.
func (c *SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *SchedulerConfig) DailyIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.DailyInterval)
	return d
}

func (c *SchedulerConfig) WeeklyIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.WeeklyInterval)
	return d
}

func (c *SchedulerConfig) AutomationIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.AutomationInterval)
	return d
}

func (c *SchedulerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *SchedulerConfig) Merge(overlay *SchedulerConfig) {
	if overlay.Enabled != nil {
		enabled := *overlay.Enabled
		c.Enabled = &enabled
	}
	if overlay.DailyInterval != "" {
		c.DailyInterval = overlay.DailyInterval
	}
	if overlay.WeeklyInterval != "" {
		c.WeeklyInterval = overlay.WeeklyInterval
	}
	if overlay.AutomationInterval != "" {
		c.AutomationInterval = overlay.AutomationInterval
	}
}

func (c *SchedulerConfig) loadDefaults() {
	if c.DailyInterval == "" {
		c.DailyInterval = "24h"
	}
	if c.WeeklyInterval == "" {
		c.WeeklyInterval = "168h"
	}
	if c.AutomationInterval == "" {
		c.AutomationInterval = "1h"
	}
}

func (c *SchedulerConfig) loadEnv() {
	if v := os.Getenv(EnvSchedulerEnabled); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Enabled = &enabled
		}
	}
	if v := os.Getenv(EnvSchedulerDailyInterval); v != "" {
		c.DailyInterval = v
	}
	if v := os.Getenv(EnvSchedulerWeeklyInterval); v != "" {
		c.WeeklyInterval = v
	}
	if v := os.Getenv(EnvSchedulerAutomationInterval); v != "" {
		c.AutomationInterval = v
	}
}

func (c *SchedulerConfig) validate() error {
	intervals := []struct {
		name  string
		value string
	}{
		{"daily_interval", c.DailyInterval},
		{"weekly_interval", c.WeeklyInterval},
		{"automation_interval", c.AutomationInterval},
	}
	for _, iv := range intervals {
		d, err := time.ParseDuration(iv.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", iv.name, err)
		}
		if d < time.Minute {
			return fmt.Errorf("%s must be at least 1m", iv.name)
		}
	}
	return nil
}
