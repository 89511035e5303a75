package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Broker. Jobs do not survive a restart; it serves
// tests and single-process development.
type Memory struct {
	mu          sync.Mutex
	jobs        []*Job
	maxAttempts map[string]int
	now         func() time.Time
}

// NewMemory creates an empty in-memory broker.
func NewMemory(maxAttempts map[string]int) *Memory {
	return &Memory{
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// SetClock replaces the broker's time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Enqueue(ctx context.Context, msg Message) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.DedupeKey != "" {
		for _, j := range m.jobs {
			if j.Queue == msg.Queue && j.DedupeKey != nil && *j.DedupeKey == msg.DedupeKey {
				copied := *j
				return &copied, nil
			}
		}
	}

	attempts := msg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts(m.maxAttempts, msg.Queue)
	}

	now := m.now()
	runAt := msg.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	job := &Job{
		ID:          uuid.New(),
		Queue:       msg.Queue,
		Kind:        msg.Kind,
		Payload:     slices.Clone(msg.Payload),
		Status:      StatusPending,
		MaxAttempts: attempts,
		RunAt:       runAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if msg.DedupeKey != "" {
		key := msg.DedupeKey
		job.DedupeKey = &key
	}

	m.jobs = append(m.jobs, job)

	copied := *job
	return &copied, nil
}

func (m *Memory) Claim(ctx context.Context, queue string) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var next *Job
	for _, j := range m.jobs {
		if j.Queue != queue || j.Status != StatusPending || j.RunAt.After(now) {
			continue
		}
		if next == nil || j.RunAt.Before(next.RunAt) {
			next = j
		}
	}
	if next == nil {
		return nil, ErrEmpty
	}

	next.Status = StatusActive
	next.Attempts++
	next.LockedAt = &now
	next.UpdatedAt = now

	copied := *next
	return &copied, nil
}

func (m *Memory) Complete(ctx context.Context, id uuid.UUID) error {
	return m.settle(id, func(j *Job, now time.Time) {
		j.Status = StatusCompleted
		j.CompletedAt = &now
	})
}

func (m *Memory) Retry(ctx context.Context, id uuid.UUID, runAt time.Time, cause error) error {
	return m.settle(id, func(j *Job, now time.Time) {
		j.Status = StatusPending
		j.RunAt = runAt
		j.LastError = errorText(cause)
	})
}

func (m *Memory) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	return m.settle(id, func(j *Job, now time.Time) {
		j.Status = StatusFailed
		j.LastError = errorText(cause)
		j.CompletedAt = &now
	})
}

func (m *Memory) Release(ctx context.Context, id uuid.UUID) error {
	return m.settle(id, func(j *Job, now time.Time) {
		j.Status = StatusPending
		j.RunAt = now
		if j.Attempts > 0 {
			j.Attempts--
		}
	})
}

func (m *Memory) Reap(ctx context.Context, staleAfter time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-staleAfter)
	reason := "lease expired"

	var n int64
	for _, j := range m.jobs {
		if j.Status != StatusActive || j.LockedAt == nil || !j.LockedAt.Before(cutoff) {
			continue
		}
		if j.Attempts >= j.MaxAttempts {
			j.Status = StatusFailed
			j.CompletedAt = &now
		} else {
			j.Status = StatusPending
			j.RunAt = now
		}
		j.LastError = &reason
		j.LockedAt = nil
		j.UpdatedAt = now
		n++
	}
	return n, nil
}

func (m *Memory) Purge(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.jobs[:0]
	var n int64
	for _, j := range m.jobs {
		if j.Status == StatusCompleted && j.CompletedAt != nil && j.CompletedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, j)
	}
	clear(m.jobs[len(kept):])
	m.jobs = kept
	return n, nil
}

// Jobs returns a snapshot of every job on queue in enqueue order.
func (m *Memory) Jobs(queue string) []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, 0)
	for _, j := range m.jobs {
		if j.Queue == queue {
			out = append(out, *j)
		}
	}
	return out
}

// Get returns a snapshot of the job with the given id.
func (m *Memory) Get(id uuid.UUID) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.ID == id {
			return *j, true
		}
	}
	return Job{}, false
}

func (m *Memory) settle(id uuid.UUID, apply func(*Job, time.Time)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, j := range m.jobs {
		if j.ID != id {
			continue
		}
		if j.Status != StatusActive {
			return fmt.Errorf("job %s is %s: %w", id, j.Status, ErrNotFound)
		}
		now := m.now()
		apply(j, now)
		j.LockedAt = nil
		j.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("job %s: %w", id, ErrNotFound)
}
