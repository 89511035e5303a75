// Package automation evaluates a tenant's enabled automation rules against
// current and previous metric windows and hands fired actions to the
// notification dispatcher.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/notifications"
	"github.com/JaimeStill/harbor/internal/rules"
	"github.com/JaimeStill/harbor/internal/users"
	"github.com/JaimeStill/harbor/pkg/queue"
)

// RuleSource loads the rules to evaluate.
type RuleSource interface {
	ListEnabled(ctx context.Context, tenantID uuid.UUID) ([]rules.Rule, error)
}

// MetricSource computes metric values over day windows.
type MetricSource interface {
	Compute(ctx context.Context, tenantID uuid.UUID, metricKey string, windowDays, offsetDays int) (float64, error)
}

// RecipientSource resolves notification addresses by role.
type RecipientSource interface {
	EmailsByRole(ctx context.Context, tenantID uuid.UUID, role users.Role) ([]string, error)
}

// Dispatcher hands a notification to the notification queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, req notifications.Request) (*queue.Job, error)
}

// Evaluator runs one tenant's rules sequentially. Rules are isolated from one
// another: an error or panic in one rule is reported in its Outcome and the
// remaining rules still run.
type Evaluator struct {
	rules            RuleSource
	metrics          MetricSource
	recipients       RecipientSource
	dispatcher       Dispatcher
	dispatchAttempts int
	dispatchBackoff  queue.Backoff
	logger           *slog.Logger
}

// NewEvaluator creates an Evaluator. Each notification dispatch is tried up to
// dispatchAttempts times, with a floor of one.
func NewEvaluator(
	rules RuleSource,
	metrics MetricSource,
	recipients RecipientSource,
	dispatcher Dispatcher,
	dispatchAttempts int,
	logger *slog.Logger,
) *Evaluator {
	if dispatchAttempts < 1 {
		dispatchAttempts = 1
	}
	return &Evaluator{
		rules:            rules,
		metrics:          metrics,
		recipients:       recipients,
		dispatcher:       dispatcher,
		dispatchAttempts: dispatchAttempts,
		dispatchBackoff:  queue.Backoff{Base: 100 * time.Millisecond, Max: time.Second},
		logger:           logger.With("system", "automation"),
	}
}

// Evaluate runs every enabled rule for tenantID. runID scopes notification
// dedupe keys, so a rerun with the same runID never queues a second
// notification for a rule that already fired. The returned error is non-nil
// only when the rules could not be loaded.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID uuid.UUID, runID string) ([]Outcome, error) {
	enabled, err := e.rules.ListEnabled(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	outcomes := make([]Outcome, 0, len(enabled))
	for _, rule := range enabled {
		o := e.evaluateRule(ctx, tenantID, runID, rule)
		e.logOutcome(tenantID, o)
		outcomes = append(outcomes, o)
	}

	return outcomes, nil
}

func (e *Evaluator) evaluateRule(ctx context.Context, tenantID uuid.UUID, runID string, rule rules.Rule) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = errored(rule.ID, rule.Name, fmt.Errorf("%w: %v", queue.ErrPanic, r))
		}
	}()

	def, err := rule.Decode()
	if err != nil {
		return errored(rule.ID, rule.Name, err)
	}
	if !def.Condition.Type.Supported() {
		return skipped(rule.ID, rule.Name, fmt.Sprintf("unsupported condition type %q", def.Condition.Type))
	}

	current, err := e.metrics.Compute(ctx, tenantID, def.Metric, def.Period.CurrentDays, 0)
	if err != nil {
		return errored(rule.ID, rule.Name, fmt.Errorf("current period: %w", err))
	}

	previous, err := e.metrics.Compute(ctx, tenantID, def.Metric, def.Period.PreviousDays, def.Period.CurrentDays)
	if err != nil {
		return errored(rule.ID, rule.Name, fmt.Errorf("previous period: %w", err))
	}

	verdict, err := def.Condition.Evaluate(current, previous)
	if err != nil {
		return errored(rule.ID, rule.Name, err)
	}
	if !verdict.Fired {
		return skipped(rule.ID, rule.Name, verdict.Reason)
	}

	role, err := users.ParseRole(def.Action.ToRole)
	if err != nil {
		return errored(rule.ID, rule.Name, err)
	}

	recipients, err := e.recipients.EmailsByRole(ctx, tenantID, role)
	if err != nil {
		return errored(rule.ID, rule.Name, fmt.Errorf("resolve recipients: %w", err))
	}
	if len(recipients) == 0 {
		return skipped(rule.ID, rule.Name, fmt.Sprintf("no %s recipients", role))
	}

	req := notifications.Request{
		TenantID:   tenantID,
		Recipients: recipients,
		Subject:    def.Action.Subject,
		TemplateID: def.Action.Template,
		TemplateData: map[string]any{
			"metricKey":     def.Metric,
			"currentValue":  current,
			"previousValue": previous,
			"dropPercent":   fmt.Sprintf("%.2f", verdict.DropPercent),
		},
	}
	if runID != "" {
		req.DedupeKey = runID + ":" + rule.ID.String()
	}

	job, err := e.dispatch(ctx, req)
	if err != nil {
		return errored(rule.ID, rule.Name, err)
	}
	return fired(rule.ID, rule.Name, job.ID)
}

func (e *Evaluator) dispatch(ctx context.Context, req notifications.Request) (*queue.Job, error) {
	var err error
	for attempt := 1; attempt <= e.dispatchAttempts; attempt++ {
		var job *queue.Job
		job, err = e.dispatcher.Dispatch(ctx, req)
		if err == nil {
			return job, nil
		}
		if errors.Is(err, notifications.ErrNoRecipients) || attempt == e.dispatchAttempts {
			break
		}

		timer := time.NewTimer(e.dispatchBackoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dispatch: %w", errors.Join(err, ctx.Err()))
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("dispatch: %w", err)
}

func (e *Evaluator) logOutcome(tenantID uuid.UUID, o Outcome) {
	attrs := []any{"tenant_id", tenantID, "rule_id", o.RuleID, "rule", o.RuleName}
	switch o.Result {
	case Fired:
		e.logger.Info("rule fired", append(attrs, "notification_job_id", o.NotificationJobID)...)
	case Skipped:
		e.logger.Debug("rule skipped", append(attrs, "reason", o.Reason)...)
	case Errored:
		e.logger.Error("rule evaluation failed", append(attrs, "error", o.Err)...)
	}
}
