package queue

import (
	"log/slog"
	"time"
)

// EventType classifies how an attempt settled.
type EventType string

const (
	// EventCompleted: the handler succeeded.
	EventCompleted EventType = "completed"
	// EventRetried: the attempt failed and the job was rescheduled.
	EventRetried EventType = "retried"
	// EventFailed: the job was dead-lettered.
	EventFailed EventType = "failed"
	// EventReleased: the attempt was interrupted by shutdown and returned to pending.
	EventReleased EventType = "released"
)

// Event describes one settled attempt.
type Event struct {
	Type     EventType
	Job      Job
	Err      error
	Duration time.Duration
	// RetryAt is set for EventRetried.
	RetryAt time.Time
}

// Listener receives fabric events. Listeners run on the worker goroutine and
// must not block.
type Listener func(Event)

// LogListener logs completion at info and failures at warn or error.
func LogListener(logger *slog.Logger) Listener {
	return func(e Event) {
		attrs := []any{
			"queue", e.Job.Queue,
			"kind", e.Job.Kind,
			"job_id", e.Job.ID,
			"attempt", e.Job.Attempts,
			"duration", e.Duration,
		}

		switch e.Type {
		case EventCompleted:
			logger.Info("job completed", attrs...)
		case EventRetried:
			logger.Warn("job failed, retry scheduled", append(attrs, "error", e.Err, "retry_at", e.RetryAt)...)
		case EventFailed:
			logger.Error("job failed", append(attrs, "error", e.Err, "permanent", IsPermanent(e.Err))...)
		case EventReleased:
			logger.Info("job released on shutdown", attrs...)
		}
	}
}
