// Package records stores parsed rows of ingested files and answers windowed
// count and aggregate queries over them.
package records

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidField = errors.New("invalid payload field")
	ErrInvalidQuery = errors.New("invalid record query")
)

// Record is one parsed data row. Records are immutable; a file's records are
// only ever replaced as a whole.
type Record struct {
	ID         uuid.UUID         `json:"id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	FileID     uuid.UUID         `json:"file_id"`
	RowIndex   int               `json:"row_index"`
	RecordType string            `json:"record_type"`
	Data       map[string]string `json:"data"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ReplaceCommand carries a file's full parsed content.
type ReplaceCommand struct {
	TenantID   uuid.UUID
	FileID     uuid.UUID
	RecordType string
	Rows       []map[string]string
	Checksum   string
}

// Window selects one tenant's records of a partition created in [Start, End).
type Window struct {
	TenantID  uuid.UUID
	Partition string
	Start     time.Time
	End       time.Time
}

func (w Window) validate() error {
	if w.Partition == "" {
		return fmt.Errorf("%w: partition required", ErrInvalidQuery)
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: window ends before it starts", ErrInvalidQuery)
	}
	return nil
}

// Aggregation is a numeric reduction over a payload field.
type Aggregation string

const (
	Sum Aggregation = "sum"
	Avg Aggregation = "avg"
)

// ParseAggregation returns the Aggregation named s.
func ParseAggregation(s string) (Aggregation, bool) {
	switch a := Aggregation(s); a {
	case Sum, Avg:
		return a, true
	}
	return "", false
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField reports whether name can be used as an aggregate payload field.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}
