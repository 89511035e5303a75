package queue

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds broker and worker pool settings.
type Config struct {
	Driver       string                `toml:"driver"`
	PollInterval string                `toml:"poll_interval"`
	ReapInterval string                `toml:"reap_interval"`
	StaleAfter   string                `toml:"stale_after"`
	Retention    string                `toml:"retention"`
	BackoffBase  string                `toml:"backoff_base"`
	BackoffMax   string                `toml:"backoff_max"`
	Pools        map[string]PoolConfig `toml:"pools"`
}

// PoolConfig holds the settings for one queue's worker pool.
type PoolConfig struct {
	Concurrency int    `toml:"concurrency"`
	Timeout     string `toml:"timeout"`
	MaxAttempts int    `toml:"max_attempts"`
}

// Env maps config fields to environment variable names for override injection.
// Pool settings are read from <PoolPrefix>_<QUEUE>_CONCURRENCY, _TIMEOUT and
// _MAX_ATTEMPTS, where QUEUE is the upper-cased queue name with dashes replaced
// by underscores.
type Env struct {
	Driver       string
	PollInterval string
	ReapInterval string
	StaleAfter   string
	Retention    string
	BackoffBase  string
	BackoffMax   string
	PoolPrefix   string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (p PoolConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(p.Timeout)
	return d
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// ReapIntervalDuration returns ReapInterval as a time.Duration.
func (c *Config) ReapIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReapInterval)
	return d
}

// StaleAfterDuration returns StaleAfter as a time.Duration.
func (c *Config) StaleAfterDuration() time.Duration {
	d, _ := time.ParseDuration(c.StaleAfter)
	return d
}

// RetentionDuration returns how long completed jobs are kept before purge.
func (c *Config) RetentionDuration() time.Duration {
	d, _ := time.ParseDuration(c.Retention)
	return d
}

// Backoff returns the retry schedule described by BackoffBase and BackoffMax.
func (c *Config) Backoff() Backoff {
	base, _ := time.ParseDuration(c.BackoffBase)
	limit, _ := time.ParseDuration(c.BackoffMax)
	return Backoff{Base: base, Max: limit}
}

// Pool returns the settings for the named queue.
func (c *Config) Pool(name string) PoolConfig {
	return c.Pools[name]
}

// Finalize applies defaults, environment variable overrides, and validation.
// defaults supplies per-queue pool settings; every queue named there is
// guaranteed a complete PoolConfig afterwards.
func (c *Config) Finalize(env *Env, defaults map[string]PoolConfig) error {
	c.loadDefaults(defaults)
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Driver != "" {
		c.Driver = overlay.Driver
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	if overlay.ReapInterval != "" {
		c.ReapInterval = overlay.ReapInterval
	}
	if overlay.StaleAfter != "" {
		c.StaleAfter = overlay.StaleAfter
	}
	if overlay.Retention != "" {
		c.Retention = overlay.Retention
	}
	if overlay.BackoffBase != "" {
		c.BackoffBase = overlay.BackoffBase
	}
	if overlay.BackoffMax != "" {
		c.BackoffMax = overlay.BackoffMax
	}
	for name, o := range overlay.Pools {
		if c.Pools == nil {
			c.Pools = make(map[string]PoolConfig)
		}
		p := c.Pools[name]
		if o.Concurrency != 0 {
			p.Concurrency = o.Concurrency
		}
		if o.Timeout != "" {
			p.Timeout = o.Timeout
		}
		if o.MaxAttempts != 0 {
			p.MaxAttempts = o.MaxAttempts
		}
		c.Pools[name] = p
	}
}

func (c *Config) loadDefaults(defaults map[string]PoolConfig) {
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	if c.PollInterval == "" {
		c.PollInterval = "1s"
	}
	if c.ReapInterval == "" {
		c.ReapInterval = "30s"
	}
	if c.StaleAfter == "" {
		c.StaleAfter = "15m"
	}
	if c.Retention == "" {
		c.Retention = "168h"
	}
	if c.BackoffBase == "" {
		c.BackoffBase = "5s"
	}
	if c.BackoffMax == "" {
		c.BackoffMax = "10m"
	}

	if c.Pools == nil {
		c.Pools = make(map[string]PoolConfig)
	}
	for name, d := range defaults {
		p := c.Pools[name]
		if p.Concurrency == 0 {
			p.Concurrency = d.Concurrency
		}
		if p.Timeout == "" {
			p.Timeout = d.Timeout
		}
		if p.MaxAttempts == 0 {
			p.MaxAttempts = d.MaxAttempts
		}
		c.Pools[name] = p
	}
	for name, p := range c.Pools {
		if p.Concurrency == 0 {
			p.Concurrency = 1
		}
		if p.Timeout == "" {
			p.Timeout = "5m"
		}
		if p.MaxAttempts == 0 {
			p.MaxAttempts = 3
		}
		c.Pools[name] = p
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Driver != "" {
		if v := os.Getenv(env.Driver); v != "" {
			c.Driver = v
		}
	}
	if env.PollInterval != "" {
		if v := os.Getenv(env.PollInterval); v != "" {
			c.PollInterval = v
		}
	}
	if env.ReapInterval != "" {
		if v := os.Getenv(env.ReapInterval); v != "" {
			c.ReapInterval = v
		}
	}
	if env.StaleAfter != "" {
		if v := os.Getenv(env.StaleAfter); v != "" {
			c.StaleAfter = v
		}
	}
	if env.Retention != "" {
		if v := os.Getenv(env.Retention); v != "" {
			c.Retention = v
		}
	}
	if env.BackoffBase != "" {
		if v := os.Getenv(env.BackoffBase); v != "" {
			c.BackoffBase = v
		}
	}
	if env.BackoffMax != "" {
		if v := os.Getenv(env.BackoffMax); v != "" {
			c.BackoffMax = v
		}
	}

	if env.PoolPrefix == "" {
		return
	}
	for name, p := range c.Pools {
		key := env.PoolPrefix + "_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if v := os.Getenv(key + "_CONCURRENCY"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				p.Concurrency = n
			}
		}
		if v := os.Getenv(key + "_TIMEOUT"); v != "" {
			p.Timeout = v
		}
		if v := os.Getenv(key + "_MAX_ATTEMPTS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				p.MaxAttempts = n
			}
		}
		c.Pools[name] = p
	}
}

func (c *Config) validate() error {
	if c.Driver != DriverPostgres && c.Driver != DriverMemory {
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}

	durations := map[string]string{
		"poll_interval": c.PollInterval,
		"reap_interval": c.ReapInterval,
		"stale_after":   c.StaleAfter,
		"retention":     c.Retention,
		"backoff_base":  c.BackoffBase,
		"backoff_max":   c.BackoffMax,
	}
	for field, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", field, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", field)
		}
	}

	if c.Backoff().Base > c.Backoff().Max {
		return fmt.Errorf("backoff_base cannot exceed backoff_max")
	}

	stale := c.StaleAfterDuration()
	for name, p := range c.Pools {
		if p.Concurrency < 1 {
			return fmt.Errorf("pools.%s: concurrency must be positive", name)
		}
		if p.MaxAttempts < 1 {
			return fmt.Errorf("pools.%s: max_attempts must be positive", name)
		}
		timeout, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("pools.%s: invalid timeout: %w", name, err)
		}
		if timeout <= 0 {
			return fmt.Errorf("pools.%s: timeout must be positive", name)
		}
		if timeout >= stale {
			return fmt.Errorf("pools.%s: timeout must be shorter than stale_after", name)
		}
	}

	return nil
}
