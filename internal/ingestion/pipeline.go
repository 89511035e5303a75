// Package ingestion turns uploaded raw files into processed records. One job
// handles one file: download, parse, persist, and move the file out of PENDING.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/harbor/internal/files"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/internal/records"
	"github.com/JaimeStill/harbor/pkg/checksum"
	"github.com/JaimeStill/harbor/pkg/formatting"
	"github.com/JaimeStill/harbor/pkg/queue"
)

// FileStore reads raw files and records failures.
type FileStore interface {
	Find(ctx context.Context, tenantID, id uuid.UUID) (*files.RawFile, error)
	MarkFailed(ctx context.Context, tenantID, id uuid.UUID, reason string) error
}

// RecordStore persists a file's parsed rows and marks it processed.
type RecordStore interface {
	ReplaceForFile(ctx context.Context, cmd records.ReplaceCommand) (int, error)
}

// Blobs reads uploaded content by storage key.
type Blobs interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// Pipeline processes raw files.
type Pipeline struct {
	files    FileStore
	records  RecordStore
	blobs    Blobs
	maxBytes int64
	logger   *slog.Logger
}

// New creates a Pipeline that rejects content larger than maxBytes.
func New(fs FileStore, rs RecordStore, blobs Blobs, maxBytes int64, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		files:    fs,
		records:  rs,
		blobs:    blobs,
		maxBytes: maxBytes,
		logger:   logger.With("system", "ingestion"),
	}
}

// Process ingests one file. A file already PROCESSED or FAILED is left alone.
//
// Parse failures mark the file FAILED and return a permanent error. Transfer
// and store failures return a retryable error and mark the file FAILED only
// when finalAttempt is set, so an earlier attempt leaves it PENDING for the
// retry. An attempt interrupted by cancellation of ctx never marks FAILED. A missing file row is permanent and changes nothing.
func (p *Pipeline) Process(ctx context.Context, tenantID, fileID uuid.UUID, finalAttempt bool) error {
	f, err := p.files.Find(ctx, tenantID, fileID)
	if err != nil {
		if errors.Is(err, files.ErrNotFound) {
			return queue.Permanent(fmt.Errorf("file %s: %w", fileID, err))
		}
		return fmt.Errorf("load file %s: %w", fileID, err)
	}

	if f.Status.Terminal() {
		p.logger.Info("file already settled", "file_id", f.ID, "tenant_id", f.TenantID, "status", f.Status)
		return nil
	}

	rows, sum, err := p.fetch(ctx, f)
	if err != nil {
		return p.fail(ctx, f, err, finalAttempt)
	}

	n, err := p.records.ReplaceForFile(ctx, records.ReplaceCommand{
		TenantID:   f.TenantID,
		FileID:     f.ID,
		RecordType: f.Type.RecordType(),
		Rows:       rows,
		Checksum:   sum,
	})
	if err != nil {
		if errors.Is(err, files.ErrNotPending) {
			p.logger.Info("file settled concurrently", "file_id", f.ID, "tenant_id", f.TenantID)
			return nil
		}
		return p.fail(ctx, f, fmt.Errorf("store records: %w", err), finalAttempt)
	}

	p.logger.Info(
		"file processed",
		"file_id", f.ID,
		"tenant_id", f.TenantID,
		"type", f.Type,
		"rows", n,
		"checksum", sum,
	)
	return nil
}

// Handler returns the file-processing queue handler.
func (p *Pipeline) Handler() queue.Handler {
	return func(ctx context.Context, job *queue.Job) error {
		var payload jobs.ProcessFile
		if err := job.Decode(&payload); err != nil {
			return err
		}
		return p.Process(ctx, payload.TenantID, payload.FileID, job.FinalAttempt())
	}
}

func (p *Pipeline) fetch(ctx context.Context, f *files.RawFile) ([]map[string]string, string, error) {
	body, err := p.blobs.Download(ctx, f.StorageKey)
	if err != nil {
		return nil, "", fmt.Errorf("%w: download %s: %w", ErrTransfer, f.StorageKey, err)
	}
	defer body.Close()

	hashed := checksum.NewReader(body)
	payload, err := io.ReadAll(io.LimitReader(hashed, p.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %w", ErrTransfer, f.StorageKey, err)
	}
	if int64(len(payload)) > p.maxBytes {
		return nil, "", fmt.Errorf(
			"%w: content exceeds %s limit",
			ErrParse, formatting.FormatBytes(p.maxBytes),
		)
	}

	rows, err := Parse(f.StorageKey, payload)
	if err != nil {
		return nil, "", err
	}
	return rows, hashed.Sum(), nil
}

func (p *Pipeline) fail(ctx context.Context, f *files.RawFile, cause error, finalAttempt bool) error {
	permanent := errors.Is(cause, ErrParse)
	// a cancelled job context means shutdown, and the job is released for redelivery
	interrupted := errors.Is(ctx.Err(), context.Canceled)

	if permanent || (finalAttempt && !interrupted) {
		// the job context may already be cancelled by its timeout
		markCtx := context.WithoutCancel(ctx)
		if err := p.files.MarkFailed(markCtx, f.TenantID, f.ID, cause.Error()); err != nil && !errors.Is(err, files.ErrNotPending) {
			p.logger.Error("mark file failed", "file_id", f.ID, "tenant_id", f.TenantID, "error", err)
			cause = errors.Join(cause, fmt.Errorf("mark failed: %w", err))
		}
	}

	p.logger.Warn(
		"file processing failed",
		"file_id", f.ID,
		"tenant_id", f.TenantID,
		"permanent", permanent,
		"final_attempt", finalAttempt,
		"interrupted", interrupted,
		"error", cause,
	)

	if permanent {
		return queue.Permanent(cause)
	}
	return cause
}
