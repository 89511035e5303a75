// Package files implements the raw file domain: registration of uploaded
// tabular files, tenant-scoped lookups, and the monotonic status lifecycle
// PENDING -> PROCESSED | FAILED.
package files

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType is the declared content of an uploaded file.
type FileType string

const (
	TypeSales     FileType = "SALES"
	TypeExpenses  FileType = "EXPENSES"
	TypeInventory FileType = "INVENTORY"
)

// ParseFileType normalizes s to a FileType.
func ParseFileType(s string) (FileType, error) {
	switch t := FileType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeSales, TypeExpenses, TypeInventory:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown file type %q", ErrInvalidFile, s)
	}
}

// RecordType returns the partition tag given to records parsed from files of this type.
func (t FileType) RecordType() string {
	return strings.ToLower(string(t))
}

// Status is a RawFile lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
)

// ParseStatus normalizes s to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusProcessed, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidFile, s)
	}
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// RawFile is one uploaded document.
type RawFile struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	Type       FileType  `json:"type"`
	StorageKey string    `json:"storage_key"`
	Status     Status    `json:"status"`
	Checksum   *string   `json:"checksum,omitempty"`
	RowCount   *int      `json:"row_count,omitempty"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RegisterCommand carries the data needed to register a new upload.
// Extension is the file suffix without the dot, e.g. "csv" or "xlsx".
type RegisterCommand struct {
	TenantID  uuid.UUID
	Type      FileType
	Extension string
}
