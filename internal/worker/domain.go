package worker

import (
	"github.com/JaimeStill/harbor/internal/automation"
	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/files"
	"github.com/JaimeStill/harbor/internal/ingestion"
	"github.com/JaimeStill/harbor/internal/insights"
	"github.com/JaimeStill/harbor/internal/metrics"
	"github.com/JaimeStill/harbor/internal/notifications"
	"github.com/JaimeStill/harbor/internal/records"
	"github.com/JaimeStill/harbor/internal/rules"
	"github.com/JaimeStill/harbor/internal/scheduler"
	"github.com/JaimeStill/harbor/internal/tenants"
	"github.com/JaimeStill/harbor/internal/users"
)

// Domain holds the domain systems the worker runs.
type Domain struct {
	Tenants  tenants.System
	Users    users.System
	Files    files.System
	Records  records.System
	Rules    rules.System
	Insights insights.System

	Aggregator *metrics.Aggregator
	Dispatcher *notifications.Dispatcher
	Evaluator  *automation.Evaluator
	Ingestion  *ingestion.Pipeline
	Generator  *insights.Generator
	Sender     notifications.Sender
	Scheduler  *scheduler.Scheduler
}

// NewDomain creates all domain systems from the worker runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	pool := runtime.Database.Pool()

	tenantsSystem := tenants.New(pool, runtime.Logger)
	usersSystem := users.New(pool, runtime.Logger)
	recordsSystem := records.New(pool, runtime.Logger, runtime.Pagination)
	rulesSystem := rules.New(pool, runtime.Logger, runtime.Pagination)
	insightsSystem := insights.New(pool, runtime.Logger, runtime.Pagination)

	filesSystem := files.New(
		pool,
		runtime.Storage,
		runtime.Producer,
		runtime.Logger,
		runtime.Pagination,
	)

	aggregator := metrics.NewAggregator(recordsSystem)
	dispatcher := notifications.NewDispatcher(runtime.Producer, runtime.Logger)

	evaluator := automation.NewEvaluator(
		rulesSystem,
		aggregator,
		usersSystem,
		dispatcher,
		cfg.Automation.DispatchAttempts,
		runtime.Logger,
	)

	pipeline := ingestion.New(
		filesSystem,
		recordsSystem,
		runtime.Storage,
		cfg.Ingestion.MaxFileSizeBytes(),
		runtime.Logger,
	)

	generator := insights.NewGenerator(recordsSystem, insightsSystem, runtime.Logger)

	sched := scheduler.New(
		tenantsSystem,
		runtime.Producer,
		scheduler.Intervals{
			DailyInsights:  cfg.Scheduler.DailyIntervalDuration(),
			WeeklyInsights: cfg.Scheduler.WeeklyIntervalDuration(),
			Automation:     cfg.Scheduler.AutomationIntervalDuration(),
		},
		runtime.Logger,
	)

	return &Domain{
		Tenants:    tenantsSystem,
		Users:      usersSystem,
		Files:      filesSystem,
		Records:    recordsSystem,
		Rules:      rulesSystem,
		Insights:   insightsSystem,
		Aggregator: aggregator,
		Dispatcher: dispatcher,
		Evaluator:  evaluator,
		Ingestion:  pipeline,
		Generator:  generator,
		Sender:     notifications.NewLogSender(runtime.Logger),
		Scheduler:  sched,
	}
}
