package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/repository"
)

// System defines tenant-scoped rule management and the evaluator's read.
type System interface {
	List(ctx context.Context, tenantID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[Rule], error)
	Find(ctx context.Context, tenantID, id uuid.UUID) (*Rule, error)
	// ListEnabled returns the tenant's enabled rules as of the read.
	ListEnabled(ctx context.Context, tenantID uuid.UUID) ([]Rule, error)
	Create(ctx context.Context, cmd CreateCommand) (*Rule, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, cmd UpdateCommand) (*Rule, error)
}

var projection = query.
	NewProjectionMap("public", "automation_rules", "ar").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("name", "Name").
	Project("enabled", "Enabled").
	Project("definition", "Definition").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, tenant_id, name, enabled, definition, created_at, updated_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// updateSQL leaves a column unchanged when its argument is NULL.
const updateSQL = `
		UPDATE automation_rules
		SET name = COALESCE($3, name),
			enabled = COALESCE($4, enabled),
			definition = COALESCE($5, definition),
			updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + returning

type repo struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a rule repository implementing the System interface.
func New(pool *pgxpool.Pool, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		pool:       pool,
		logger:     logger.With("system", "rules"),
		pagination: pagination,
	}
}

func (r *repo) List(ctx context.Context, tenantID uuid.UUID, page pagination.PageRequest) (*pagination.PageResult[Rule], error) {
	page.Normalize(r.pagination)

	qb := listBuilder(tenantID)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rules: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	found, err := repository.QueryMany(ctx, r.pool, pageSQL, pageArgs, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	result := pagination.NewPageResult(found, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, tenantID, id uuid.UUID) (*Rule, error) {
	q, args := findQuery(tenantID, id)

	rule, err := repository.QueryOne(ctx, r.pool, q, args, scanRule)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rule, nil
}

func (r *repo) ListEnabled(ctx context.Context, tenantID uuid.UUID) ([]Rule, error) {
	q, args := enabledQuery(tenantID)
	return repository.QueryMany(ctx, r.pool, q, args, scanRule)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Rule, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidDefinition)
	}
	if err := cmd.Definition.Validate(); err != nil {
		return nil, err
	}

	enabled := true
	if cmd.Enabled != nil {
		enabled = *cmd.Enabled
	}

	q := `
		INSERT INTO automation_rules (id, tenant_id, name, enabled, definition)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + returning

	args := []any{uuid.New(), cmd.TenantID, name, enabled, cmd.Definition}

	rule, err := repository.QueryOne(ctx, r.pool, q, args, scanRule)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule created", "id", rule.ID, "tenant_id", rule.TenantID, "name", rule.Name)
	return &rule, nil
}

func (r *repo) Update(ctx context.Context, tenantID, id uuid.UUID, cmd UpdateCommand) (*Rule, error) {
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		return nil, fmt.Errorf("%w: name required", ErrInvalidDefinition)
	}
	if cmd.Definition != nil {
		if err := cmd.Definition.Validate(); err != nil {
			return nil, err
		}
	}

	var name *string
	if cmd.Name != nil {
		trimmed := strings.TrimSpace(*cmd.Name)
		name = &trimmed
	}

	args := []any{id, tenantID, name, cmd.Enabled, cmd.Definition}

	rule, err := repository.QueryOne(ctx, r.pool, updateSQL, args, scanRule)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule updated", "id", rule.ID, "tenant_id", rule.TenantID, "enabled", rule.Enabled)
	return &rule, nil
}

func listBuilder(tenantID uuid.UUID) *query.Builder {
	return query.
		NewBuilder(projection, defaultSort).
		WhereEquals("TenantID", tenantID)
}

func findQuery(tenantID, id uuid.UUID) (string, []any) {
	return query.
		NewBuilder(projection).
		WhereEquals("TenantID", tenantID).
		BuildSingle("ID", id)
}

// enabledQuery orders oldest first so evaluation order is stable.
func enabledQuery(tenantID uuid.UUID) (string, []any) {
	return query.
		NewBuilder(projection, query.SortField{Field: "CreatedAt"}).
		WhereEquals("TenantID", tenantID).
		WhereEquals("Enabled", true).
		Build()
}

func scanRule(s repository.Scanner) (Rule, error) {
	var rule Rule
	err := s.Scan(
		&rule.ID,
		&rule.TenantID,
		&rule.Name,
		&rule.Enabled,
		&rule.Definition,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	return rule, err
}
