package automation

import (
	"context"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/queue"
)

// Handler returns the automation queue handler. The job fails, and is
// retried, only when the tenant's rules cannot be loaded. Per-rule errors are
// logged and do not fail the job.
func (e *Evaluator) Handler() queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var p jobs.EvaluateAutomations
		if err := job.Decode(&p); err != nil {
			return err
		}

		outcomes, err := e.Evaluate(ctx, p.TenantID, job.ID.String())
		if err != nil {
			return err
		}

		counts := Tally(outcomes)
		e.logger.Info(
			"automation evaluated",
			"tenant_id", p.TenantID,
			"job_id", job.ID,
			"rules", len(outcomes),
			"fired", counts[Fired],
			"skipped", counts[Skipped],
			"errored", counts[Errored],
		)
		return nil
	}
}
