package records

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/internal/files"
	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/repository"
)

// System defines record persistence and windowed reads.
type System interface {
	// ReplaceForFile atomically deletes the file's previous records, inserts
	// cmd.Rows, and moves the file from PENDING to PROCESSED. It returns
	// files.ErrNotPending, with nothing written, if the file is no longer pending.
	ReplaceForFile(ctx context.Context, cmd ReplaceCommand) (int, error)

	Count(ctx context.Context, w Window) (int64, error)
	Aggregate(ctx context.Context, w Window, field string, agg Aggregation) (float64, error)

	List(
		ctx context.Context,
		tenantID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Record], error)
}

var projection = query.
	NewProjectionMap("public", "processed_records", "r").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("file_id", "FileID").
	Project("row_index", "RowIndex").
	Project("record_type", "RecordType").
	Project("data", "Data").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var copyColumns = []string{"id", "tenant_id", "file_id", "row_index", "record_type", "data"}

// Filters narrows record listings. Nil fields are ignored.
type Filters struct {
	RecordType *string    `json:"record_type,omitempty"`
	FileID     *uuid.UUID `json:"file_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("RecordType", f.RecordType).
		WhereEquals("FileID", f.FileID)
}

type repo struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a record repository implementing the System interface.
func New(pool *pgxpool.Pool, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		pool:       pool,
		logger:     logger.With("system", "records"),
		pagination: pagination,
	}
}

func (r *repo) ReplaceForFile(ctx context.Context, cmd ReplaceCommand) (int, error) {
	n, err := repository.WithTx(ctx, r.pool, func(tx pgx.Tx) (int, error) {
		if _, err := tx.Exec(
			ctx,
			"DELETE FROM processed_records WHERE tenant_id = $1 AND file_id = $2",
			cmd.TenantID, cmd.FileID,
		); err != nil {
			return 0, fmt.Errorf("clear previous records: %w", err)
		}

		copied, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"processed_records"},
			copyColumns,
			pgx.CopyFromSlice(len(cmd.Rows), func(i int) ([]any, error) {
				return []any{uuid.New(), cmd.TenantID, cmd.FileID, i, cmd.RecordType, cmd.Rows[i]}, nil
			}),
		)
		if err != nil {
			return 0, fmt.Errorf("copy records: %w", err)
		}

		if err := files.MarkProcessed(ctx, tx, cmd.TenantID, cmd.FileID, cmd.Checksum, int(copied)); err != nil {
			return 0, err
		}
		return int(copied), nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("records replaced", "file_id", cmd.FileID, "tenant_id", cmd.TenantID, "rows", n)
	return n, nil
}

func (r *repo) Count(ctx context.Context, w Window) (int64, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}

	q, args := windowBuilder(w).BuildCount()

	var n int64
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (r *repo) Aggregate(ctx context.Context, w Window, field string, agg Aggregation) (float64, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}
	expr, err := aggregateExpr(field, agg)
	if err != nil {
		return 0, err
	}

	q, args := windowBuilder(w).BuildScalar(expr)

	var v float64
	if err := r.pool.QueryRow(ctx, q, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("aggregate records: %w", err)
	}
	return v, nil
}

func (r *repo) List(
	ctx context.Context,
	tenantID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Record], error) {
	page.Normalize(r.pagination)

	qb := listBuilder(tenantID, filters)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	found, err := repository.QueryMany(ctx, r.pool, pageSQL, pageArgs, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	result := pagination.NewPageResult(found, total, page.Page, page.PageSize)
	return &result, nil
}

func listBuilder(tenantID uuid.UUID, filters Filters) *query.Builder {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("TenantID", tenantID)
	return filters.Apply(qb)
}

func windowBuilder(w Window) *query.Builder {
	return query.
		NewBuilder(projection).
		WhereEquals("TenantID", w.TenantID).
		WhereEquals("RecordType", w.Partition).
		WhereAtOrAfter("CreatedAt", w.Start).
		WhereBefore("CreatedAt", w.End)
}

// aggregateExpr reduces a payload field over the window. Cells that are not
// plain decimal numbers are ignored; an empty window reduces to 0.
func aggregateExpr(field string, agg Aggregation) (string, error) {
	if !ValidField(field) {
		return "", fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	var fn string
	switch agg {
	case Sum:
		fn = "SUM"
	case Avg:
		fn = "AVG"
	default:
		return "", fmt.Errorf("%w: unsupported aggregation %q", ErrInvalidQuery, agg)
	}

	cell := fmt.Sprintf("btrim(%s.data->>'%s')", projection.Alias(), field)
	numeric := fmt.Sprintf(`CASE WHEN %[1]s ~ '^-?[0-9]+(\.[0-9]+)?$' THEN %[1]s::numeric END`, cell)
	return fmt.Sprintf("COALESCE(%s(%s), 0)::float8", fn, numeric), nil
}

func scanRecord(s repository.Scanner) (Record, error) {
	var rec Record
	err := s.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.FileID,
		&rec.RowIndex,
		&rec.RecordType,
		&rec.Data,
		&rec.CreatedAt,
	)
	return rec, err
}
