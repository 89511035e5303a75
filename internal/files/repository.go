package files

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/queue"
	"github.com/JaimeStill/harbor/pkg/repository"
	"github.com/JaimeStill/harbor/pkg/storage"
)

var allowedExtensions = map[string]bool{
	"csv":  true,
	"txt":  true,
	"xlsx": true,
}

type repo struct {
	pool       *pgxpool.Pool
	storage    storage.System
	producer   *jobs.Producer
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a raw file repository implementing the System interface.
func New(
	pool *pgxpool.Pool,
	store storage.System,
	producer *jobs.Producer,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		pool:       pool,
		storage:    store,
		producer:   producer,
		logger:     logger.With("system", "files"),
		pagination: pagination,
	}
}

func (r *repo) Register(ctx context.Context, cmd RegisterCommand) (*RawFile, error) {
	ext := strings.ToLower(strings.TrimPrefix(cmd.Extension, "."))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidFile, cmd.Extension)
	}
	if _, err := ParseFileType(string(cmd.Type)); err != nil {
		return nil, err
	}

	id := uuid.New()
	q := `
		INSERT INTO raw_files (id, tenant_id, file_type, storage_key)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + returning

	args := []any{id, cmd.TenantID, string(cmd.Type), StorageKey(cmd.TenantID, id, ext)}

	f, err := repository.QueryOne(ctx, r.pool, q, args, scanFile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("file registered", "id", f.ID, "tenant_id", f.TenantID, "type", f.Type)
	return &f, nil
}

func (r *repo) Find(ctx context.Context, tenantID, id uuid.UUID) (*RawFile, error) {
	q, args := findQuery(tenantID, id)

	f, err := repository.QueryOne(ctx, r.pool, q, args, scanFile)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &f, nil
}

func (r *repo) History(
	ctx context.Context,
	tenantID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[RawFile], error) {
	page.Normalize(r.pagination)

	qb := historyBuilder(tenantID, filters)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	found, err := repository.QueryMany(ctx, r.pool, pageSQL, pageArgs, scanFile)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}

	result := pagination.NewPageResult(found, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) ConfirmUpload(ctx context.Context, tenantID, id uuid.UUID) (*queue.Job, error) {
	f, err := r.Find(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if f.Status != StatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, f.ID, f.Status)
	}

	exists, err := r.storage.Exists(ctx, f.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("check upload: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotUploaded, f.StorageKey)
	}

	job, err := r.producer.ProcessFile(
		ctx,
		jobs.ProcessFile{FileID: f.ID, TenantID: f.TenantID},
		jobs.WithDedupeKey(f.ID.String()),
	)
	if err != nil {
		return nil, err
	}

	r.logger.Info("upload confirmed", "id", f.ID, "job_id", job.ID)
	return job, nil
}

func (r *repo) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, reason string) error {
	if err := MarkFailed(ctx, r.pool, tenantID, id, reason); err != nil {
		return err
	}
	r.logger.Warn("file marked failed", "id", id, "tenant_id", tenantID, "reason", reason)
	return nil
}

// MarkProcessed moves a PENDING file to PROCESSED on e, recording the content
// checksum and row count. It is meant to run inside the transaction that
// persists the file's records. Returns ErrNotPending if the file is terminal
// or absent.
func MarkProcessed(ctx context.Context, e repository.Executor, tenantID, id uuid.UUID, checksum string, rows int) error {
	err := repository.ExecExpectOne(
		ctx, e,
		`UPDATE raw_files
		SET status = 'PROCESSED', checksum = $3, row_count = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = 'PENDING'`,
		id, tenantID, checksum, rows,
	)
	return repository.MapError(err, ErrNotPending, ErrDuplicate)
}

// MarkFailed moves a PENDING file to FAILED on e. Returns ErrNotPending if the
// file is terminal or absent.
func MarkFailed(ctx context.Context, e repository.Executor, tenantID, id uuid.UUID, reason string) error {
	err := repository.ExecExpectOne(
		ctx, e,
		`UPDATE raw_files
		SET status = 'FAILED', error = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND status = 'PENDING'`,
		id, tenantID, reason,
	)
	return repository.MapError(err, ErrNotPending, ErrDuplicate)
}

// findQuery selects one file, scoped to its tenant.
func findQuery(tenantID, id uuid.UUID) (string, []any) {
	return query.
		NewBuilder(projection).
		WhereEquals("TenantID", tenantID).
		BuildSingle("ID", id)
}

func historyBuilder(tenantID uuid.UUID, filters Filters) *query.Builder {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("TenantID", tenantID)
	return filters.Apply(qb)
}

// StorageKey returns the blob key for a tenant's file.
func StorageKey(tenantID, id uuid.UUID, ext string) string {
	return fmt.Sprintf("tenants/%s/files/%s.%s", tenantID, id, ext)
}
