package insights

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/internal/records"
	"github.com/JaimeStill/harbor/pkg/queue"
)

const (
	salesPartition    = "sales"
	expensesPartition = "expenses"
)

// Counter counts records in a window.
type Counter interface {
	Count(ctx context.Context, w records.Window) (int64, error)
}

// Store persists generated insights.
type Store interface {
	Create(ctx context.Context, tenantID uuid.UUID, t Type, content Content) (*Insight, error)
}

// Generator produces insights from record counts.
type Generator struct {
	counter Counter
	store   Store
	now     func() time.Time
	logger  *slog.Logger
}

// NewGenerator creates a Generator that stamps insights with the wall clock.
func NewGenerator(counter Counter, store Store, logger *slog.Logger) *Generator {
	return &Generator{
		counter: counter,
		store:   store,
		now:     time.Now,
		logger:  logger.With("system", "insights"),
	}
}

// WithClock replaces the generator's time source.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate counts sales and expense records over t's lookback window ending
// now and persists one insight. Repeated calls append new rows.
func (g *Generator) Generate(ctx context.Context, tenantID uuid.UUID, t Type) (*Insight, error) {
	end := g.now()
	start := end.Add(-t.Lookback())

	sales, err := g.counter.Count(ctx, records.Window{
		TenantID:  tenantID,
		Partition: salesPartition,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("count sales: %w", err)
	}

	expenses, err := g.counter.Count(ctx, records.Window{
		TenantID:  tenantID,
		Partition: expensesPartition,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("count expenses: %w", err)
	}

	period := t.Period()
	content := Content{
		Summary: fmt.Sprintf(
			"In the %s, you had %d sales transactions and %d expense records.",
			period, sales, expenses,
		),
		Metrics: Metrics{
			TotalSales:    sales,
			TotalExpenses: expenses,
			Period:        period,
		},
		Issues:          []string{},
		Recommendations: []string{},
	}

	insight, err := g.store.Create(ctx, tenantID, t, content)
	if err != nil {
		return nil, fmt.Errorf("store insight: %w", err)
	}

	g.logger.Info(
		"insight generated",
		"id", insight.ID,
		"tenant_id", tenantID,
		"type", t,
		"sales", sales,
		"expenses", expenses,
	)
	return insight, nil
}

// Handler returns the insights queue handler. An unknown insight type is a
// permanent failure.
func (g *Generator) Handler() queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var p jobs.GenerateInsights
		if err := job.Decode(&p); err != nil {
			return err
		}

		t, err := ParseType(p.Type)
		if err != nil {
			return queue.Permanent(err)
		}

		_, err = g.Generate(ctx, p.TenantID, t)
		return err
	}
}
