package database

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds PostgreSQL connection and pool parameters.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxConns        int32  `toml:"max_conns"`
	MinConns        int32  `toml:"min_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnMaxIdleTime string `toml:"conn_max_idle_time"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxConns        string
	MinConns        string
	ConnMaxLifetime string
	ConnMaxIdleTime string
	ConnTimeout     string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnMaxIdleTimeDuration returns ConnMaxIdleTime as a time.Duration.
func (c *Config) ConnMaxIdleTimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxIdleTime)
	return d
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// Dsn returns a PostgreSQL keyword/value connection string.
func (c *Config) Dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as expected by migrate.
func (c *Config) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.Name != "" {
		c.Name = overlay.Name
	}
	if overlay.User != "" {
		c.User = overlay.User
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.SSLMode != "" {
		c.SSLMode = overlay.SSLMode
	}
	if overlay.MaxConns != 0 {
		c.MaxConns = overlay.MaxConns
	}
	if overlay.MinConns != 0 {
		c.MinConns = overlay.MinConns
	}
	if overlay.ConnMaxLifetime != "" {
		c.ConnMaxLifetime = overlay.ConnMaxLifetime
	}
	if overlay.ConnMaxIdleTime != "" {
		c.ConnMaxIdleTime = overlay.ConnMaxIdleTime
	}
	if overlay.ConnTimeout != "" {
		c.ConnTimeout = overlay.ConnTimeout
	}
}

func (c *Config) loadDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MinConns == 0 {
		c.MinConns = 2
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "30m"
	}
	if c.ConnMaxIdleTime == "" {
		c.ConnMaxIdleTime = "5m"
	}
	if c.ConnTimeout == "" {
		c.ConnTimeout = "5s"
	}
}

func (c *Config) loadEnv(env *Env) {
	setString(&c.Host, env.Host)
	setString(&c.Name, env.Name)
	setString(&c.User, env.User)
	setString(&c.Password, env.Password)
	setString(&c.SSLMode, env.SSLMode)
	setString(&c.ConnMaxLifetime, env.ConnMaxLifetime)
	setString(&c.ConnMaxIdleTime, env.ConnMaxIdleTime)
	setString(&c.ConnTimeout, env.ConnTimeout)

	if env.Port != "" {
		if v := os.Getenv(env.Port); v != "" {
			if port, err := strconv.Atoi(v); err == nil {
				c.Port = port
			}
		}
	}
	if env.MaxConns != "" {
		if v := os.Getenv(env.MaxConns); v != "" {
			if n, err := strconv.ParseInt(v, 10, 32); err == nil {
				c.MaxConns = int32(n)
			}
		}
	}
	if env.MinConns != "" {
		if v := os.Getenv(env.MinConns); v != "" {
			if n, err := strconv.ParseInt(v, 10, 32); err == nil {
				c.MinConns = int32(n)
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Name == "" {
		return fmt.Errorf("name required")
	}
	if c.User == "" {
		return fmt.Errorf("user required")
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max_conns must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns cannot exceed max_conns")
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnMaxIdleTime); err != nil {
		return fmt.Errorf("invalid conn_max_idle_time: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}

func setString(target *string, key string) {
	if key == "" {
		return
	}
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}
