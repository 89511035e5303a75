// Package config loads the Harbor worker configuration from config.toml, an
// optional config.<HARBOR_ENV>.toml overlay, and HARBOR_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/database"
	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/queue"
	"github.com/JaimeStill/harbor/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvHarborEnv             = "HARBOR_ENV"
	EnvHarborShutdownTimeout = "HARBOR_SHUTDOWN_TIMEOUT"
	EnvHarborVersion         = "HARBOR_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "HARBOR_DB_HOST",
	Port:            "HARBOR_DB_PORT",
	Name:            "HARBOR_DB_NAME",
	User:            "HARBOR_DB_USER",
	Password:        "HARBOR_DB_PASSWORD",
	SSLMode:         "HARBOR_DB_SSL_MODE",
	MaxConns:        "HARBOR_DB_MAX_CONNS",
	MinConns:        "HARBOR_DB_MIN_CONNS",
	ConnMaxLifetime: "HARBOR_DB_CONN_MAX_LIFETIME",
	ConnMaxIdleTime: "HARBOR_DB_CONN_MAX_IDLE_TIME",
	ConnTimeout:     "HARBOR_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "HARBOR_STORAGE_CONTAINER_NAME",
	ConnectionString: "HARBOR_STORAGE_CONNECTION_STRING",
	MaxRetries:       "HARBOR_STORAGE_MAX_RETRIES",
	TryTimeout:       "HARBOR_STORAGE_TRY_TIMEOUT",
}

var queueEnv = &queue.Env{
	Driver:       "HARBOR_QUEUE_DRIVER",
	PollInterval: "HARBOR_QUEUE_POLL_INTERVAL",
	ReapInterval: "HARBOR_QUEUE_REAP_INTERVAL",
	StaleAfter:   "HARBOR_QUEUE_STALE_AFTER",
	Retention:    "HARBOR_QUEUE_RETENTION",
	BackoffBase:  "HARBOR_QUEUE_BACKOFF_BASE",
	BackoffMax:   "HARBOR_QUEUE_BACKOFF_MAX",
	PoolPrefix:   "HARBOR_QUEUE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "HARBOR_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "HARBOR_PAGINATION_MAX_PAGE_SIZE",
}

// Config is the root configuration for Harbor processes.
type Config struct {
	Server          ServerConfig      `toml:"server"`
	Log             LogConfig         `toml:"log"`
	Database        database.Config   `toml:"database"`
	Storage         storage.Config    `toml:"storage"`
	Queue           queue.Config      `toml:"queue"`
	Ingestion       IngestionConfig   `toml:"ingestion"`
	Scheduler       SchedulerConfig   `toml:"scheduler"`
	Automation      AutomationConfig  `toml:"automation"`
	Tracing         TracingConfig     `toml:"tracing"`
	Pagination      pagination.Config `toml:"pagination"`
	ShutdownTimeout string            `toml:"shutdown_timeout"`
	Version         string            `toml:"version"`
}

// Env returns the HARBOR_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvHarborEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Log.Merge(&overlay.Log)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Queue.Merge(&overlay.Queue)
	c.Ingestion.Merge(&overlay.Ingestion)
	c.Scheduler.Merge(&overlay.Scheduler)
	c.Automation.Merge(&overlay.Automation)
	c.Tracing.Merge(&overlay.Tracing)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Log.Finalize(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Queue.Finalize(queueEnv, jobs.PoolDefaults()); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if err := c.Ingestion.Finalize(); err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}
	if err := c.Scheduler.Finalize(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Automation.Finalize(); err != nil {
		return fmt.Errorf("automation: %w", err)
	}
	if err := c.Tracing.Finalize(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvHarborShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvHarborVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvHarborEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
