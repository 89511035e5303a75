// Package notifications hands fired automation actions to the notification
// queue and consumes that queue on behalf of the delivery collaborator.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/queue"
)

var (
	ErrNoRecipients = errors.New("notification has no recipients")
	ErrEnqueue      = errors.New("notification enqueue failed")
)

// Request is one notification hand-off.
type Request struct {
	TenantID     uuid.UUID
	Recipients   []string
	Subject      string
	TemplateID   string
	TemplateData map[string]any
	// DedupeKey, when set, makes repeated dispatches of the same request
	// resolve to one queued job.
	DedupeKey string
}

// Dispatcher enqueues notification jobs. It never delivers, renders, or retries.
type Dispatcher struct {
	producer *jobs.Producer
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher that enqueues through producer.
func NewDispatcher(producer *jobs.Producer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		logger:   logger.With("system", "notifications"),
	}
}

// Dispatch enqueues exactly one notification job. The job is durable when
// Dispatch returns nil. Enqueue failures wrap ErrEnqueue and mean nothing was
// handed off.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*queue.Job, error) {
	recipients := normalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	var opts []jobs.Option
	if req.DedupeKey != "" {
		opts = append(opts, jobs.WithDedupeKey(req.DedupeKey))
	}

	job, err := d.producer.SendNotification(ctx, jobs.SendNotification{
		TenantID:     req.TenantID,
		Recipients:   recipients,
		Subject:      req.Subject,
		TemplateID:   req.TemplateID,
		TemplateData: req.TemplateData,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnqueue, err)
	}

	d.logger.Info(
		"notification dispatched",
		"tenant_id", req.TenantID,
		"job_id", job.ID,
		"template_id", req.TemplateID,
		"recipients", len(recipients),
	)
	return job, nil
}

func normalizeRecipients(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
