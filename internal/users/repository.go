package users

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/repository"
)

// System defines user lookups.
type System interface {
	// EmailsByRole returns the addresses of every tenant user holding role.
	EmailsByRole(ctx context.Context, tenantID uuid.UUID, role Role) ([]string, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]User, error)
}

var projection = query.
	NewProjectionMap("public", "users", "u").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("email", "Email").
	Project("role", "Role").
	Project("created_at", "CreatedAt")

type repo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a user repository.
func New(pool *pgxpool.Pool, logger *slog.Logger) System {
	return &repo{
		pool:   pool,
		logger: logger.With("system", "users"),
	}
}

func (r *repo) EmailsByRole(ctx context.Context, tenantID uuid.UUID, role Role) ([]string, error) {
	q, args := roleQuery(tenantID, role)

	found, err := repository.QueryMany(ctx, r.pool, q, args, scanUser)
	if err != nil {
		return nil, err
	}

	emails := make([]string, len(found))
	for i, u := range found {
		emails[i] = u.Email
	}
	return emails, nil
}

func (r *repo) List(ctx context.Context, tenantID uuid.UUID) ([]User, error) {
	q, args := listQuery(tenantID)

	return repository.QueryMany(ctx, r.pool, q, args, scanUser)
}

func roleQuery(tenantID uuid.UUID, role Role) (string, []any) {
	return query.
		NewBuilder(projection, query.SortField{Field: "Email"}).
		WhereEquals("TenantID", tenantID).
		WhereEquals("Role", string(role)).
		Build()
}

func listQuery(tenantID uuid.UUID) (string, []any) {
	return query.
		NewBuilder(projection, query.SortField{Field: "CreatedAt"}).
		WhereEquals("TenantID", tenantID).
		Build()
}

func scanUser(s repository.Scanner) (User, error) {
	var u User
	err := s.Scan(&u.ID, &u.TenantID, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}
