package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/pkg/repository"
)

const jobColumns = `id, queue, kind, payload, dedupe_key, status, attempts, max_attempts,
	run_at, last_error, locked_at, created_at, updated_at, completed_at`

type postgres struct {
	pool        *pgxpool.Pool
	maxAttempts map[string]int
	logger      *slog.Logger
}

// NewPostgres creates a broker over the jobs table. maxAttempts supplies the
// per-queue default for messages that do not set one.
func NewPostgres(pool *pgxpool.Pool, maxAttempts map[string]int, logger *slog.Logger) Broker {
	return &postgres{
		pool:        pool,
		maxAttempts: maxAttempts,
		logger:      logger.With("system", "broker", "driver", DriverPostgres),
	}
}

func (p *postgres) Enqueue(ctx context.Context, msg Message) (*Job, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}

	attempts := msg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts(p.maxAttempts, msg.Queue)
	}

	runAt := msg.RunAt
	if runAt.IsZero() {
		runAt = time.Now()
	}

	var dedupe *string
	if msg.DedupeKey != "" {
		dedupe = &msg.DedupeKey
	}

	q := `
		INSERT INTO jobs (id, queue, kind, payload, dedupe_key, max_attempts, run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (queue, dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING
		RETURNING ` + jobColumns

	args := []any{uuid.New(), msg.Queue, msg.Kind, msg.Payload, dedupe, attempts, runAt}

	job, err := repository.QueryOne(ctx, p.pool, q, args, scanJob)
	if errors.Is(err, pgx.ErrNoRows) && dedupe != nil {
		existing, err := repository.QueryOne(
			ctx, p.pool,
			`SELECT `+jobColumns+` FROM jobs WHERE queue = $1 AND dedupe_key = $2`,
			[]any{msg.Queue, *dedupe},
			scanJob,
		)
		if err != nil {
			return nil, fmt.Errorf("load deduplicated job: %w", err)
		}
		p.logger.Debug("enqueue deduplicated", "queue", msg.Queue, "kind", msg.Kind, "job_id", existing.ID)
		return &existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return &job, nil
}

func (p *postgres) Claim(ctx context.Context, queue string) (*Job, error) {
	q := `
		UPDATE jobs
		SET status = 'active', attempts = attempts + 1, locked_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $1 AND status = 'pending' AND run_at <= now()
			ORDER BY run_at, created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns

	job, err := repository.QueryOne(ctx, p.pool, q, []any{queue}, scanJob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}

	return &job, nil
}

func (p *postgres) Complete(ctx context.Context, id uuid.UUID) error {
	q := `
		UPDATE jobs
		SET status = 'completed', locked_at = NULL, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'`

	return p.settle(ctx, "complete", q, id)
}

func (p *postgres) Retry(ctx context.Context, id uuid.UUID, runAt time.Time, cause error) error {
	q := `
		UPDATE jobs
		SET status = 'pending', locked_at = NULL, run_at = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = 'active'`

	return p.settle(ctx, "retry", q, id, runAt, errorText(cause))
}

func (p *postgres) Fail(ctx context.Context, id uuid.UUID, cause error) error {
	q := `
		UPDATE jobs
		SET status = 'failed', locked_at = NULL, last_error = $2, completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'`

	return p.settle(ctx, "fail", q, id, errorText(cause))
}

func (p *postgres) Release(ctx context.Context, id uuid.UUID) error {
	q := `
		UPDATE jobs
		SET status = 'pending', attempts = GREATEST(attempts - 1, 0), locked_at = NULL,
			run_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'`

	return p.settle(ctx, "release", q, id)
}

func (p *postgres) Reap(ctx context.Context, staleAfter time.Duration) (int64, error) {
	q := `
		UPDATE jobs
		SET status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
			completed_at = CASE WHEN attempts >= max_attempts THEN now() ELSE NULL END,
			last_error = 'lease expired',
			locked_at = NULL,
			run_at = now(),
			updated_at = now()
		WHERE status = 'active' AND locked_at < $1`

	tag, err := p.pool.Exec(ctx, q, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("reap jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *postgres) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM jobs WHERE status = 'completed' AND completed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *postgres) settle(ctx context.Context, op, q string, id uuid.UUID, args ...any) error {
	err := repository.ExecExpectOne(ctx, p.pool, q, append([]any{id}, args...)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s job %s: %w", op, id, ErrNotFound)
		}
		return fmt.Errorf("%s job %s: %w", op, id, err)
	}
	return nil
}

func scanJob(s repository.Scanner) (Job, error) {
	var j Job
	err := s.Scan(
		&j.ID,
		&j.Queue,
		&j.Kind,
		&j.Payload,
		&j.DedupeKey,
		&j.Status,
		&j.Attempts,
		&j.MaxAttempts,
		&j.RunAt,
		&j.LastError,
		&j.LockedAt,
		&j.CreatedAt,
		&j.UpdatedAt,
		&j.CompletedAt,
	)
	return j, err
}

func defaultAttempts(attempts map[string]int, queue string) int {
	if n, ok := attempts[queue]; ok && n > 0 {
		return n
	}
	return 3
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	s := err.Error()
	return &s
}
