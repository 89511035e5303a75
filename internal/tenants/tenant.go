// Package tenants reads the tenant registry that scopes every other domain.
package tenants

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/repository"
)

var ErrNotFound = errors.New("tenant not found")

// Tenant is an isolated customer account.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// System defines tenant lookups.
type System interface {
	// ListIDs returns every tenant id in creation order.
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	Find(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

var projection = query.
	NewProjectionMap("public", "tenants", "t").
	Project("id", "ID").
	Project("name", "Name").
	Project("created_at", "CreatedAt")

type repo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a tenant repository.
func New(pool *pgxpool.Pool, logger *slog.Logger) System {
	return &repo{
		pool:   pool,
		logger: logger.With("system", "tenants"),
	}
}

func (r *repo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	return repository.QueryMany(
		ctx, r.pool,
		"SELECT id FROM tenants ORDER BY created_at, id",
		nil,
		func(s repository.Scanner) (uuid.UUID, error) {
			var id uuid.UUID
			err := s.Scan(&id)
			return id, err
		},
	)
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	q, args := findQuery(id)

	t, err := repository.QueryOne(ctx, r.pool, q, args, func(s repository.Scanner) (Tenant, error) {
		var t Tenant
		err := s.Scan(&t.ID, &t.Name, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, err)
	}
	return &t, nil
}

func findQuery(id uuid.UUID) (string, []any) {
	return query.NewBuilder(projection).BuildSingle("ID", id)
}
