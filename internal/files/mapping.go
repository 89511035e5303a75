package files

import (
	"github.com/JaimeStill/harbor/pkg/query"
	"github.com/JaimeStill/harbor/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "raw_files", "f").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("file_type", "Type").
	Project("storage_key", "StorageKey").
	Project("status", "Status").
	Project("checksum", "Checksum").
	Project("row_count", "RowCount").
	Project("error", "Error").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `id, tenant_id, file_type, storage_key, status, checksum, row_count, error, created_at, updated_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters narrows file history queries. Nil fields are ignored.
type Filters struct {
	Type   *FileType `json:"type,omitempty"`
	Status *Status   `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	var typ, status any
	if f.Type != nil {
		typ = string(*f.Type)
	}
	if f.Status != nil {
		status = string(*f.Status)
	}
	return b.
		WhereEquals("Type", typ).
		WhereEquals("Status", status)
}

func scanFile(s repository.Scanner) (RawFile, error) {
	var f RawFile
	err := s.Scan(
		&f.ID,
		&f.TenantID,
		&f.Type,
		&f.StorageKey,
		&f.Status,
		&f.Checksum,
		&f.RowCount,
		&f.Error,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}
