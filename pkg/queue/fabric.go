package queue

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/harbor/pkg/lifecycle"
)

const tracerName = "github.com/JaimeStill/harbor/pkg/queue"

// Fabric composes a broker with one worker pool per registered queue.
// Handlers must be registered before Run or Start.
type Fabric struct {
	broker       Broker
	pools        map[string]*Pool
	cfg          *Config
	poll         time.Duration
	reapInterval time.Duration
	staleAfter   time.Duration
	retention    time.Duration
	backoff      Backoff
	listeners    []Listener
	metrics      *Metrics
	tracer       trace.Tracer
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Fabric.
type Option func(*Fabric)

// WithMetrics records enqueues and settled attempts on m.
func WithMetrics(m *Metrics) Option {
	return func(f *Fabric) {
		f.metrics = m
		f.listeners = append(f.listeners, m.Listener())
	}
}

// WithTracer overrides the tracer used for job spans.
func WithTracer(t trace.Tracer) Option {
	return func(f *Fabric) { f.tracer = t }
}

// WithClock overrides the time source used for retry scheduling.
func WithClock(now func() time.Time) Option {
	return func(f *Fabric) { f.now = now }
}

// NewFabric creates a fabric over broker using cfg for pool sizing,
// polling, lease reaping, and retry backoff. cfg must be finalized.
func NewFabric(broker Broker, cfg *Config, logger *slog.Logger, opts ...Option) *Fabric {
	logger = logger.With("system", "queue")

	f := &Fabric{
		broker:       broker,
		pools:        make(map[string]*Pool),
		cfg:          cfg,
		poll:         cfg.PollIntervalDuration(),
		reapInterval: cfg.ReapIntervalDuration(),
		staleAfter:   cfg.StaleAfterDuration(),
		retention:    cfg.RetentionDuration(),
		backoff:      cfg.Backoff(),
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
		logger:       logger,
	}

	f.listeners = append(f.listeners, LogListener(logger))
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Handle registers handler for kind on queue, creating the queue's pool on
// first use.
func (f *Fabric) Handle(queue, kind string, handler Handler) {
	pool, ok := f.pools[queue]
	if !ok {
		pool = newPool(queue, f.cfg.Pool(queue), f)
		f.pools[queue] = pool
	}
	pool.handlers[kind] = handler
}

// OnEvent adds a listener for settled attempts.
func (f *Fabric) OnEvent(l Listener) {
	f.listeners = append(f.listeners, l)
}

// Pools returns the registered pools ordered by queue name.
func (f *Fabric) Pools() []*Pool {
	names := make([]string, 0, len(f.pools))
	for name := range f.pools {
		names = append(names, name)
	}
	slices.Sort(names)

	pools := make([]*Pool, len(names))
	for i, name := range names {
		pools[i] = f.pools[name]
	}
	return pools
}

// Enqueue persists msg through the broker and wakes the local pool for its queue.
// A message without MaxAttempts takes the queue's configured max_attempts.
func (f *Fabric) Enqueue(ctx context.Context, msg Message) (*Job, error) {
	if msg.MaxAttempts <= 0 {
		msg.MaxAttempts = f.cfg.Pool(msg.Queue).MaxAttempts
	}

	job, err := f.broker.Enqueue(ctx, msg)
	if err != nil {
		return nil, err
	}

	f.metrics.observeEnqueue(job)
	if pool, ok := f.pools[msg.Queue]; ok {
		pool.notify()
	}
	return job, nil
}

// Run serves every registered pool and the lease reaper until ctx is cancelled.
func (f *Fabric) Run(ctx context.Context) error {
	if len(f.pools) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	g := new(errgroup.Group)
	for _, pool := range f.Pools() {
		g.Go(func() error {
			return pool.Run(ctx)
		})
	}
	g.Go(func() error {
		f.reap(ctx)
		return nil
	})

	return g.Wait()
}

// Start runs the fabric on the lifecycle coordinator. Shutdown waits for
// in-flight attempts to settle.
func (f *Fabric) Start(lc *lifecycle.Coordinator) error {
	if len(f.pools) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	lc.Run(func(ctx context.Context) {
		if err := f.Run(ctx); err != nil {
			f.logger.Error("fabric stopped", "error", err)
		}
	})

	return nil
}

func (f *Fabric) reap(ctx context.Context) {
	ticker := time.NewTicker(f.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.sweep(ctx)
		}
	}
}

func (f *Fabric) sweep(ctx context.Context) {
	n, err := f.broker.Reap(ctx, f.staleAfter)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Error("reap failed", "error", err)
		}
		return
	}
	if n > 0 {
		f.logger.Warn("requeued stale jobs", "count", n)
		for _, pool := range f.pools {
			pool.notify()
		}
	}

	purged, err := f.broker.Purge(ctx, f.now().Add(-f.retention))
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Error("purge failed", "error", err)
		}
		return
	}
	if purged > 0 {
		f.logger.Info("purged completed jobs", "count", purged)
	}
}

func (f *Fabric) emit(e Event) {
	for _, l := range f.listeners {
		l(e)
	}
}
