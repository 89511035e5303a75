// Package worker assembles the job pipeline: it builds the domain systems,
// registers a handler for every job kind on the queue fabric, and starts the
// fabric and scheduler on the process lifecycle.
package worker

import (
	"fmt"

	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/infrastructure"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/internal/notifications"
)

// Worker is the assembled job pipeline.
type Worker struct {
	Runtime   *Runtime
	Domain    *Domain
	scheduler bool
}

// New creates a worker with handlers registered for all four queues.
func New(cfg *config.Config, infra *infrastructure.Infrastructure) *Worker {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	w := &Worker{
		Runtime:   runtime,
		Domain:    domain,
		scheduler: cfg.Scheduler.IsEnabled(),
	}
	w.register()
	return w
}

func (w *Worker) register() {
	f := w.Runtime.Fabric
	f.Handle(jobs.QueueFileProcessing, jobs.KindProcessFile, w.Domain.Ingestion.Handler())
	f.Handle(jobs.QueueInsights, jobs.KindGenerateInsights, w.Domain.Generator.Handler())
	f.Handle(jobs.QueueAutomation, jobs.KindEvaluateAutomations, w.Domain.Evaluator.Handler())
	f.Handle(jobs.QueueNotification, jobs.KindSendNotification, notifications.Handler(w.Domain.Sender))
}

// Start runs the fabric, and the scheduler when enabled, on the lifecycle
// coordinator.
func (w *Worker) Start() error {
	lc := w.Runtime.Lifecycle

	if err := w.Runtime.Fabric.Start(lc); err != nil {
		return fmt.Errorf("fabric start failed: %w", err)
	}

	for _, p := range w.Runtime.Fabric.Pools() {
		w.Runtime.Logger.Info("pool started", "queue", p.Name(), "concurrency", p.Concurrency())
	}

	if !w.scheduler {
		w.Runtime.Logger.Info("scheduler disabled")
		return nil
	}
	if err := w.Domain.Scheduler.Start(lc); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}
	return nil
}
