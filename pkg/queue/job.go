// Package queue implements a durable job queue fabric: named queues served by
// independently sized worker pools over a shared broker, with retry, backoff,
// dead-lettering, per-job timeouts, and completion/failure events.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the broker-side state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one unit of work on a named queue.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	DedupeKey   *string         `json:"dedupe_key,omitempty"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAt       time.Time       `json:"run_at"`
	LastError   *string         `json:"last_error,omitempty"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Decode unmarshals the job payload into v. A payload that cannot be decoded
// will never succeed, so the error is permanent.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Kind, err))
	}
	return nil
}

// FinalAttempt reports whether a failure of the current attempt dead-letters the job.
func (j *Job) FinalAttempt() bool {
	return j.Attempts >= j.MaxAttempts
}

// Message is a request to enqueue a job.
type Message struct {
	Queue     string
	Kind      string
	Payload   json.RawMessage
	DedupeKey string
	// MaxAttempts overrides the queue default when positive.
	MaxAttempts int
	// RunAt delays the first attempt when set.
	RunAt time.Time
}

// NewMessage builds a Message with payload marshalled as JSON.
func NewMessage(queue, kind string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Message{Queue: queue, Kind: kind, Payload: data}, nil
}

func (m Message) validate() error {
	if m.Queue == "" {
		return fmt.Errorf("%w: queue required", ErrInvalidMessage)
	}
	if m.Kind == "" {
		return fmt.Errorf("%w: kind required", ErrInvalidMessage)
	}
	if !json.Valid(m.Payload) {
		return fmt.Errorf("%w: payload must be valid JSON", ErrInvalidMessage)
	}
	return nil
}
