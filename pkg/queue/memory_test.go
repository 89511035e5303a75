package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/harbor/pkg/queue"
)

func TestMemoryClaimOrder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := queue.NewMemory(map[string]int{"work": 3})
	b.SetClock(func() time.Time { return now })

	first, _ := b.Enqueue(ctx, queue.Message{Queue: "work", Kind: "a", Payload: []byte(`{}`)})
	second, _ := b.Enqueue(ctx, queue.Message{Queue: "work", Kind: "b", Payload: []byte(`{}`)})
	_, _ = b.Enqueue(ctx, queue.Message{Queue: "work", Kind: "later", Payload: []byte(`{}`), RunAt: now.Add(time.Hour)})

	got, err := b.Claim(ctx, "work")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("first claim = %s, want %s", got.Kind, first.Kind)
	}
	if got.Attempts != 1 || got.Status != queue.StatusActive {
		t.Errorf("claimed job attempts=%d status=%s", got.Attempts, got.Status)
	}

	got, err = b.Claim(ctx, "work")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("second claim = %s, want %s", got.Kind, second.Kind)
	}

	if _, err := b.Claim(ctx, "work"); !errors.Is(err, queue.ErrEmpty) {
		t.Errorf("delayed job should not be claimable, got %v", err)
	}
	if _, err := b.Claim(ctx, "other"); !errors.Is(err, queue.ErrEmpty) {
		t.Errorf("other queue should be empty, got %v", err)
	}
}

func TestMemoryDedupe(t *testing.T) {
	ctx := context.Background()
	b := queue.NewMemory(nil)

	msg := queue.Message{Queue: "insights", Kind: "generate", Payload: []byte(`{}`), DedupeKey: "tenant-1:DAILY:2026-03-01"}
	a, err := b.Enqueue(ctx, msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	again, err := b.Enqueue(ctx, msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if a.ID != again.ID {
		t.Error("duplicate dedupe key should return the existing job")
	}
	if n := len(b.Jobs("insights")); n != 1 {
		t.Errorf("jobs = %d, want 1", n)
	}
}

func TestMemoryMaxAttemptsDefault(t *testing.T) {
	ctx := context.Background()
	b := queue.NewMemory(map[string]int{"notification": 5})

	job, _ := b.Enqueue(ctx, queue.Message{Queue: "notification", Kind: "send", Payload: []byte(`{}`)})
	if job.MaxAttempts != 5 {
		t.Errorf("max attempts = %d, want 5", job.MaxAttempts)
	}

	job, _ = b.Enqueue(ctx, queue.Message{Queue: "notification", Kind: "send", Payload: []byte(`{}`), MaxAttempts: 1})
	if job.MaxAttempts != 1 {
		t.Errorf("override max attempts = %d, want 1", job.MaxAttempts)
	}
}

func TestMemoryInvalidMessage(t *testing.T) {
	b := queue.NewMemory(nil)

	tests := []struct {
		name string
		msg  queue.Message
	}{
		{"missing queue", queue.Message{Kind: "k", Payload: []byte(`{}`)}},
		{"missing kind", queue.Message{Queue: "q", Payload: []byte(`{}`)}},
		{"invalid payload", queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Enqueue(context.Background(), tt.msg)
			if !errors.Is(err, queue.ErrInvalidMessage) {
				t.Errorf("got %v, want ErrInvalidMessage", err)
			}
		})
	}
}

func TestMemorySettleRequiresActive(t *testing.T) {
	ctx := context.Background()
	b := queue.NewMemory(nil)

	job, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`)})
	if err := b.Complete(ctx, job.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("completing a pending job: got %v, want ErrNotFound", err)
	}

	claimed, _ := b.Claim(ctx, "q")
	if err := b.Complete(ctx, claimed.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := b.Fail(ctx, claimed.ID, errors.New("late")); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("failing a completed job: got %v, want ErrNotFound", err)
	}
}

func TestMemoryReap(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := queue.NewMemory(nil)
	b.SetClock(func() time.Time { return now })

	retryable, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`), MaxAttempts: 3})
	exhausted, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`), MaxAttempts: 1})
	b.Claim(ctx, "q")
	b.Claim(ctx, "q")

	if n, _ := b.Reap(ctx, time.Minute); n != 0 {
		t.Fatalf("fresh leases reaped: %d", n)
	}

	now = now.Add(2 * time.Minute)
	n, err := b.Reap(ctx, time.Minute)
	if err != nil {
		t.Fatalf("reap failed: %v", err)
	}
	if n != 2 {
		t.Errorf("reaped = %d, want 2", n)
	}

	if j, _ := b.Get(retryable.ID); j.Status != queue.StatusPending {
		t.Errorf("retryable job status = %s, want pending", j.Status)
	}
	if j, _ := b.Get(exhausted.ID); j.Status != queue.StatusFailed {
		t.Errorf("exhausted job status = %s, want failed", j.Status)
	}
}

func TestMemoryRelease(t *testing.T) {
	ctx := context.Background()
	b := queue.NewMemory(nil)

	job, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`)})
	b.Claim(ctx, "q")

	if err := b.Release(ctx, job.ID); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	got, _ := b.Get(job.ID)
	if got.Status != queue.StatusPending || got.Attempts != 0 {
		t.Errorf("released job = %s/%d, want pending/0", got.Status, got.Attempts)
	}
	if err := b.Release(ctx, job.ID); !errors.Is(err, queue.ErrNotFound) {
		t.Errorf("releasing a pending job: got %v, want ErrNotFound", err)
	}
}

func TestMemoryPurge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := queue.NewMemory(nil)
	b.SetClock(func() time.Time { return now })

	old, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`)})
	dead, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`)})
	b.Claim(ctx, "q")
	b.Claim(ctx, "q")
	b.Complete(ctx, old.ID)
	b.Fail(ctx, dead.ID, errors.New("bad row"))

	now = now.Add(48 * time.Hour)
	fresh, _ := b.Enqueue(ctx, queue.Message{Queue: "q", Kind: "k", Payload: []byte(`{}`)})
	b.Claim(ctx, "q")
	b.Complete(ctx, fresh.ID)

	n, err := b.Purge(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if _, ok := b.Get(old.ID); ok {
		t.Error("old completed job was kept")
	}
	if _, ok := b.Get(dead.ID); !ok {
		t.Error("failed job was purged")
	}
	if _, ok := b.Get(fresh.ID); !ok {
		t.Error("recent completed job was purged")
	}
}

func TestBackoffDelay(t *testing.T) {
	b := queue.Backoff{Base: time.Second, Max: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{40, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
