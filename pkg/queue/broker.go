package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker is the durable store behind the fabric.
//
// Enqueue persists a job before returning. Claim atomically moves the oldest
// runnable pending job of a queue to active and increments its attempt count;
// a claimed job is delivered to exactly one caller. Complete, Retry, and Fail
// settle an active job. Release returns an interrupted job to pending and
// gives back the attempt its claim counted. Reap returns jobs whose lease
// outlived staleAfter to pending so that a crashed worker's jobs are
// redelivered. Purge deletes completed jobs finished before the cutoff;
// failed jobs are kept for inspection.
type Broker interface {
	Enqueue(ctx context.Context, msg Message) (*Job, error)
	Claim(ctx context.Context, queue string) (*Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Retry(ctx context.Context, id uuid.UUID, runAt time.Time, cause error) error
	Fail(ctx context.Context, id uuid.UUID, cause error) error
	Release(ctx context.Context, id uuid.UUID) error
	Reap(ctx context.Context, staleAfter time.Duration) (int64, error)
	Purge(ctx context.Context, before time.Time) (int64, error)
}

// Enqueuer is the producer-side subset of Broker.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg Message) (*Job, error)
}
