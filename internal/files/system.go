package files

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/pkg/pagination"
	"github.com/JaimeStill/harbor/pkg/queue"
)

// System defines the public contract for raw file operations. Every lookup is
// scoped by tenant.
type System interface {
	Register(ctx context.Context, cmd RegisterCommand) (*RawFile, error)
	Find(ctx context.Context, tenantID, id uuid.UUID) (*RawFile, error)

	History(
		ctx context.Context,
		tenantID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[RawFile], error)

	// ConfirmUpload verifies the content exists at the file's storage key and
	// enqueues its processing job.
	ConfirmUpload(ctx context.Context, tenantID, id uuid.UUID) (*queue.Job, error)

	// MarkFailed moves a PENDING file to FAILED, recording reason.
	MarkFailed(ctx context.Context, tenantID, id uuid.UUID, reason string) error
}
