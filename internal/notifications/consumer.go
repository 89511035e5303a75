package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/queue"
)

// Sender delivers a notification. Implementations own rendering and transport.
type Sender interface {
	Send(ctx context.Context, n jobs.SendNotification) error
}

// LogSender records delivery requests in the log. It stands in for an email
// provider until one is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("system", "notification-sender")}
}

func (s *LogSender) Send(ctx context.Context, n jobs.SendNotification) error {
	s.logger.InfoContext(
		ctx,
		"notification delivery requested",
		"tenant_id", n.TenantID,
		"recipients", n.Recipients,
		"subject", n.Subject,
		"template_id", n.TemplateID,
		"template_data", n.TemplateData,
	)
	return nil
}

// Handler returns the notification queue handler. A payload without
// recipients can never be delivered and fails permanently. Sender errors are
// retryable.
func Handler(sender Sender) queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var n jobs.SendNotification
		if err := job.Decode(&n); err != nil {
			return err
		}

		n.Recipients = normalizeRecipients(n.Recipients)
		if len(n.Recipients) == 0 {
			return queue.Permanent(ErrNoRecipients)
		}

		if err := sender.Send(ctx, n); err != nil {
			return fmt.Errorf("send notification: %w", err)
		}
		return nil
	}
}
