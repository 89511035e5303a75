package worker

import (
	"github.com/JaimeStill/harbor/internal/config"
	"github.com/JaimeStill/harbor/internal/infrastructure"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/queue"
)

const tracerName = "github.com/JaimeStill/harbor/pkg/queue"

// Runtime extends Infrastructure with the queue fabric and worker settings.
type Runtime struct {
	*infrastructure.Infrastructure
	Fabric     *queue.Fabric
	Producer   *jobs.Producer
	Pagination pagination.Config
}

// NewRuntime creates a worker runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	logger := infra.Logger.With("module", "worker")

	fabric := queue.NewFabric(
		infra.Broker,
		&cfg.Queue,
		logger,
		queue.WithMetrics(infra.Metrics),
		queue.WithTracer(infra.Tracing.Tracer(tracerName)),
	)

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    logger,
			Database:  infra.Database,
			Storage:   infra.Storage,
			Broker:    infra.Broker,
			Registry:  infra.Registry,
			Metrics:   infra.Metrics,
			Tracing:   infra.Tracing,
		},
		Fabric:     fabric,
		Producer:   jobs.NewProducer(fabric),
		Pagination: cfg.Pagination,
	}
}
