// Package insights summarizes a tenant's recent activity into persisted
// insight documents, one per generation run.
package insights

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("insight not found")
	ErrDuplicate   = errors.New("insight already exists")
	ErrUnknownType = errors.New("unknown insight type")
)

// Type selects the lookback window of a generation run.
type Type string

const (
	TypeDaily  Type = "DAILY"
	TypeWeekly Type = "WEEKLY"
)

// ParseType normalizes s to a Type.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeDaily, TypeWeekly:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Lookback returns the window length for t.
func (t Type) Lookback() time.Duration {
	if t == TypeWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Period returns the human label for t's window.
func (t Type) Period() string {
	if t == TypeWeekly {
		return "last 7 days"
	}
	return "last 24 hours"
}

// Insight is one persisted generation run.
type Insight struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Type      Type      `json:"type"`
	Content   Content   `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Content is the stored summary document.
type Content struct {
	Summary         string   `json:"summary"`
	Metrics         Metrics  `json:"metrics"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
}

// Metrics are the raw counts behind a summary.
type Metrics struct {
	TotalSales    int64  `json:"totalSales"`
	TotalExpenses int64  `json:"totalExpenses"`
	Period        string `json:"period"`
}

// Filters narrows insight listings. Nil fields are ignored.
type Filters struct {
	Type *Type `json:"type,omitempty"`
}
