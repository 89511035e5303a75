package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("rule not found")
	ErrDuplicate            = errors.New("rule already exists")
	ErrInvalidDefinition    = errors.New("invalid rule definition")
	ErrUnsupportedCondition = errors.New("unsupported condition type")
)

// Rule is one tenant's automation rule. Definition holds the stored document
// as read; rows written by a newer build may not decode, so callers parse it
// per rule with Decode.
type Rule struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	Name       string          `json:"name"`
	Enabled    bool            `json:"enabled"`
	Definition json.RawMessage `json:"definition"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Decode parses the stored definition. Failures wrap ErrInvalidDefinition.
func (r Rule) Decode() (Definition, error) {
	var d Definition
	if err := json.Unmarshal(r.Definition, &d); err != nil {
		return Definition{}, fmt.Errorf("%w: rule %s: %w", ErrInvalidDefinition, r.ID, err)
	}
	return d, nil
}

// CreateCommand carries a new rule. Enabled defaults to true when nil.
type CreateCommand struct {
	TenantID   uuid.UUID
	Name       string
	Enabled    *bool
	Definition Definition
}

// UpdateCommand carries a partial rule update. Nil fields are left unchanged.
type UpdateCommand struct {
	Name       *string
	Enabled    *bool
	Definition *Definition
}
