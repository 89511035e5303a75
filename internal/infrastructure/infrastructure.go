// Package infrastructure provides core service initialization for process startup.
// It assembles the dependencies (logging, database, storage, queue broker, metrics,
// tracing) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/pkg/database"
	"github.com/JaimeStill/harbor/pkg/lifecycle"
	"github.com/JaimeStill/harbor/pkg/queue"
	"github.com/JaimeStill/harbor/pkg/storage"
)

// Infrastructure holds the core systems required by every Harbor process.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Broker    queue.Broker
	Registry  *prometheus.Registry
	Metrics   *queue.Metrics
	Tracing   *Tracing
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := NewLogger(&cfg.Log)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	broker, err := newBroker(&cfg.Queue, db, logger)
	if err != nil {
		return nil, fmt.Errorf("broker init failed: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tracing, err := NewTracing(&cfg.Tracing, cfg.Version, cfg.Env(), logger)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Broker:    broker,
		Registry:  registry,
		Metrics:   queue.NewMetrics(registry),
		Tracing:   tracing,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.Tracing.Start(i.Lifecycle)
	return nil
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.JSON() {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newBroker(cfg *queue.Config, db database.System, logger *slog.Logger) (queue.Broker, error) {
	maxAttempts := make(map[string]int, len(cfg.Pools))
	for name, p := range cfg.Pools {
		maxAttempts[name] = p.MaxAttempts
	}

	switch cfg.Driver {
	case queue.DriverPostgres:
		return queue.NewPostgres(db.Pool(), maxAttempts, logger), nil
	case queue.DriverMemory:
		logger.Warn("using in-memory queue broker; jobs will not survive a restart")
		return queue.NewMemory(maxAttempts), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}
