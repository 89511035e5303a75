// Package scheduler periodically enqueues insight and automation jobs for
// every tenant. Dedupe keys are bucketed by interval so any number of worker
// processes can run the scheduler without duplicating work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/lifecycle"
)

const fanOut = 8

// Task names a scheduled job family.
type Task string

const (
	TaskDailyInsights  Task = "daily-insights"
	TaskWeeklyInsights Task = "weekly-insights"
	TaskAutomation     Task = "automation"
)

// Intervals sets how often each task fires.
type Intervals struct {
	DailyInsights  time.Duration
	WeeklyInsights time.Duration
	Automation     time.Duration
}

// TenantLister enumerates tenants.
type TenantLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Scheduler enqueues each Task for every tenant once per interval bucket.
type Scheduler struct {
	tenants   TenantLister
	producer  *jobs.Producer
	intervals map[Task]time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Scheduler firing each task at its interval in iv.
func New(tenants TenantLister, producer *jobs.Producer, iv Intervals, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tenants:  tenants,
		producer: producer,
		intervals: map[Task]time.Duration{
			TaskDailyInsights:  iv.DailyInsights,
			TaskWeeklyInsights: iv.WeeklyInsights,
			TaskAutomation:     iv.Automation,
		},
		now:    time.Now,
		logger: logger.With("system", "scheduler"),
	}
}

// WithClock replaces the scheduler's time source.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start runs one loop per task on the lifecycle coordinator.
func (s *Scheduler) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting scheduler")

	for task, interval := range s.intervals {
		if interval <= 0 {
			return fmt.Errorf("scheduler task %s: interval must be positive", task)
		}
		lc.Run(func(ctx context.Context) {
			s.loop(ctx, task, interval)
		})
	}
	return nil
}

// loop fires immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) loop(ctx context.Context, task Task, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Fire(ctx, task); err != nil && ctx.Err() == nil {
			s.logger.Error("scheduled task failed", "task", task, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Fire enqueues task for every tenant and returns the number of tenants
// enqueued. A failure for one tenant does not stop the others.
func (s *Scheduler) Fire(ctx context.Context, task Task) (int, error) {
	interval, ok := s.intervals[task]
	if !ok {
		return 0, fmt.Errorf("unknown scheduler task %q", task)
	}

	ids, err := s.tenants.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tenants: %w", err)
	}

	bucket := s.now().Truncate(interval).Unix()

	var (
		mu       sync.Mutex
		errs     []error
		enqueued int
	)

	g := new(errgroup.Group)
	g.SetLimit(fanOut)

	for _, id := range ids {
		g.Go(func() error {
			key := fmt.Sprintf("%s:%s:%d", id, task, bucket)
			err := s.enqueue(ctx, task, id, key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("tenant %s: %w", id, err))
				return nil
			}
			enqueued++
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("scheduled task fired", "task", task, "tenants", len(ids), "enqueued", enqueued, "failed", len(errs))
	return enqueued, errors.Join(errs...)
}

func (s *Scheduler) enqueue(ctx context.Context, task Task, tenantID uuid.UUID, key string) error {
	opt := jobs.WithDedupeKey(key)

	var err error
	switch task {
	case TaskDailyInsights:
		_, err = s.producer.GenerateInsights(ctx, jobs.GenerateInsights{TenantID: tenantID, Type: "DAILY"}, opt)
	case TaskWeeklyInsights:
		_, err = s.producer.GenerateInsights(ctx, jobs.GenerateInsights{TenantID: tenantID, Type: "WEEKLY"}, opt)
	case TaskAutomation:
		_, err = s.producer.EvaluateAutomations(ctx, jobs.EvaluateAutomations{TenantID: tenantID}, opt)
	}
	return err
}
