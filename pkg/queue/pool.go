package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Handler executes one job attempt. Returning nil completes the job; returning
// an error schedules a retry unless the error is Permanent or attempts are exhausted.
type Handler func(ctx context.Context, job *Job) error

// Pool serves one queue with a fixed number of workers.
type Pool struct {
	name        string
	concurrency int
	timeout     time.Duration
	handlers    map[string]Handler
	wake        chan struct{}
	fabric      *Fabric
	logger      *slog.Logger
}

func newPool(name string, cfg PoolConfig, f *Fabric) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.TimeoutDuration() <= 0 {
		cfg.Timeout = "5m"
	}

	return &Pool{
		name:        name,
		concurrency: cfg.Concurrency,
		timeout:     cfg.TimeoutDuration(),
		handlers:    make(map[string]Handler),
		wake:        make(chan struct{}, 1),
		fabric:      f,
		logger:      f.logger.With("queue", name),
	}
}

// Name returns the queue name.
func (p *Pool) Name() string { return p.name }

// Concurrency returns the worker count.
func (p *Pool) Concurrency() int { return p.concurrency }

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight attempt has settled.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("pool started", "concurrency", p.concurrency, "timeout", p.timeout)

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	for range p.concurrency {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}

	err := g.Wait()
	p.logger.Info("pool stopped")
	return err
}

func (p *Pool) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) work(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := p.fabric.broker.Claim(ctx, p.name)
		if err != nil {
			if !errors.Is(err, ErrEmpty) && ctx.Err() == nil {
				p.logger.Error("claim failed", "error", err)
			}
			p.idle(ctx)
			continue
		}

		p.execute(ctx, job)
	}
}

func (p *Pool) idle(ctx context.Context) {
	timer := time.NewTimer(p.fabric.poll)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-p.wake:
	}
}

func (p *Pool) execute(ctx context.Context, job *Job) {
	start := p.fabric.now()
	p.fabric.metrics.trackInflight(p.name, 1)
	defer p.fabric.metrics.trackInflight(p.name, -1)

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	jobCtx, span := p.fabric.tracer.Start(
		jobCtx,
		"queue.job",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("queue.name", job.Queue),
			attribute.String("job.kind", job.Kind),
			attribute.String("job.id", job.ID.String()),
			attribute.Int("job.attempt", job.Attempts),
		),
	)
	defer span.End()

	err := p.invoke(jobCtx, job)
	if err != nil && ctx.Err() == nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrTimeout, p.timeout, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job attempt failed")
	}

	event := Event{Job: *job, Err: err}
	settleCtx := context.WithoutCancel(ctx)
	broker := p.fabric.broker

	var settleErr error
	switch {
	case err == nil:
		event.Type = EventCompleted
		settleErr = broker.Complete(settleCtx, job.ID)
	case ctx.Err() != nil:
		event.Type = EventReleased
		settleErr = broker.Release(settleCtx, job.ID)
	case IsPermanent(err) || job.FinalAttempt():
		event.Type = EventFailed
		settleErr = broker.Fail(settleCtx, job.ID, err)
	default:
		event.Type = EventRetried
		event.RetryAt = p.fabric.now().Add(p.fabric.backoff.Delay(job.Attempts))
		settleErr = broker.Retry(settleCtx, job.ID, event.RetryAt, err)
	}

	if settleErr != nil {
		p.logger.Error("settle job failed", "job_id", job.ID, "outcome", event.Type, "error", settleErr)
	}

	event.Duration = p.fabric.now().Sub(start)
	p.fabric.emit(event)
}

func (p *Pool) invoke(ctx context.Context, job *Job) (err error) {
	handler, ok := p.handlers[job.Kind]
	if !ok {
		return Permanent(fmt.Errorf("%w: %s/%s", ErrUnknownKind, job.Queue, job.Kind))
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	return handler(ctx, job)
}
