// Package jobs defines the queue names, job kinds, and wire payloads shared by
// every producer and consumer of the job pipeline.
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/pkg/queue"
)

// Queue names.
const (
	QueueFileProcessing = "file-processing"
	QueueInsights       = "insights"
	QueueAutomation     = "automation"
	QueueNotification   = "notification"
)

// Job kinds.
const (
	KindProcessFile         = "process-file"
	KindGenerateInsights    = "generate-insights"
	KindEvaluateAutomations = "evaluate-automations"
	KindSendNotification    = "send-notification"
)

// PoolDefaults are the baseline worker pool settings per queue.
func PoolDefaults() map[string]queue.PoolConfig {
	return map[string]queue.PoolConfig{
		QueueFileProcessing: {Concurrency: 5, Timeout: "5m", MaxAttempts: 3},
		QueueInsights:       {Concurrency: 3, Timeout: "2m", MaxAttempts: 3},
		QueueAutomation:     {Concurrency: 2, Timeout: "2m", MaxAttempts: 3},
		QueueNotification:   {Concurrency: 10, Timeout: "1m", MaxAttempts: 5},
	}
}

// ProcessFile is the file-processing payload.
type ProcessFile struct {
	FileID   uuid.UUID `json:"fileId"`
	TenantID uuid.UUID `json:"tenantId"`
}

// GenerateInsights is the insights payload. Type is DAILY or WEEKLY.
type GenerateInsights struct {
	TenantID uuid.UUID `json:"tenantId"`
	Type     string    `json:"type"`
}

// EvaluateAutomations is the automation payload.
type EvaluateAutomations struct {
	TenantID uuid.UUID `json:"tenantId"`
}

// SendNotification is the notification payload.
type SendNotification struct {
	TenantID     uuid.UUID      `json:"tenantId"`
	Recipients   []string       `json:"recipients"`
	Subject      string         `json:"subject"`
	TemplateID   string         `json:"templateId"`
	TemplateData map[string]any `json:"templateData"`
}

// Producer enqueues typed payloads onto their queues.
type Producer struct {
	enqueuer queue.Enqueuer
}

// NewProducer creates a Producer over enqueuer.
func NewProducer(enqueuer queue.Enqueuer) *Producer {
	return &Producer{enqueuer: enqueuer}
}

// Option adjusts a message before it is enqueued.
type Option func(*queue.Message)

// WithDedupeKey makes the enqueue idempotent for key within the queue.
func WithDedupeKey(key string) Option {
	return func(m *queue.Message) { m.DedupeKey = key }
}

func (p *Producer) ProcessFile(ctx context.Context, payload ProcessFile, opts ...Option) (*queue.Job, error) {
	return p.enqueue(ctx, QueueFileProcessing, KindProcessFile, payload, opts)
}

func (p *Producer) GenerateInsights(ctx context.Context, payload GenerateInsights, opts ...Option) (*queue.Job, error) {
	return p.enqueue(ctx, QueueInsights, KindGenerateInsights, payload, opts)
}

func (p *Producer) EvaluateAutomations(ctx context.Context, payload EvaluateAutomations, opts ...Option) (*queue.Job, error) {
	return p.enqueue(ctx, QueueAutomation, KindEvaluateAutomations, payload, opts)
}

func (p *Producer) SendNotification(ctx context.Context, payload SendNotification, opts ...Option) (*queue.Job, error) {
	return p.enqueue(ctx, QueueNotification, KindSendNotification, payload, opts)
}

func (p *Producer) enqueue(ctx context.Context, q, kind string, payload any, opts []Option) (*queue.Job, error) {
	msg, err := queue.NewMessage(q, kind, payload)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&msg)
	}

	job, err := p.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return job, nil
}
