package insights

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/repository"
)

// DefaultPageSize applies to List requests that do not name a page size.
const DefaultPageSize = 50

// System defines insight persistence and reads.
type System interface {
	Store

	List(
		ctx context.Context,
		tenantID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Insight], error)

	// Latest returns the tenant's newest insight of type t.
	Latest(ctx context.Context, tenantID uuid.UUID, t Type) (*Insight, error)
}

var projection = query.
	NewProjectionMap("public", "insights", "i").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("insight_type", "Type").
	Project("content", "Content").
	Project("created_at", "CreatedAt")

const returning = `id, tenant_id, insight_type, content, created_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

type repo struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an insight repository implementing the System interface.
func New(pool *pgxpool.Pool, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		pool:       pool,
		logger:     logger.With("system", "insights"),
		pagination: pagination,
	}
}

func (r *repo) Create(ctx context.Context, tenantID uuid.UUID, t Type, content Content) (*Insight, error) {
	q := `
		INSERT INTO insights (id, tenant_id, insight_type, content)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + returning

	args := []any{uuid.New(), tenantID, string(t), content}

	insight, err := repository.QueryOne(ctx, r.pool, q, args, scanInsight)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &insight, nil
}

func (r *repo) List(
	ctx context.Context,
	tenantID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Insight], error) {
	if page.PageSize < 1 {
		page.PageSize = DefaultPageSize
	}
	page.Normalize(r.pagination)

	qb := listBuilder(tenantID, filters)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count insights: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	found, err := repository.QueryMany(ctx, r.pool, pageSQL, pageArgs, scanInsight)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}

	result := pagination.NewPageResult(found, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Latest(ctx context.Context, tenantID uuid.UUID, t Type) (*Insight, error) {
	q, args := latestQuery(tenantID, t)

	insight, err := repository.QueryOne(ctx, r.pool, q, args, scanInsight)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &insight, nil
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var typ any
	if f.Type != nil {
		typ = string(*f.Type)
	}
	return b.WhereEquals("Type", typ)
}

func listBuilder(tenantID uuid.UUID, filters Filters) *query.Builder {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("TenantID", tenantID)
	return filters.Apply(qb)
}

func latestQuery(tenantID uuid.UUID, t Type) (string, []any) {
	return query.
		NewBuilder(projection, defaultSort).
		WhereEquals("TenantID", tenantID).
		WhereEquals("Type", string(t)).
		BuildFirst()
}

func scanInsight(s repository.Scanner) (Insight, error) {
	var i Insight
	err := s.Scan(
		&i.ID,
		&i.TenantID,
		&i.Type,
		&i.Content,
		&i.CreatedAt,
	)
	return i, err
}
