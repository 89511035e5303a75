package ingestion_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/harbor/internal/files"
	"github.com/JaimeStill/harbor/internal/ingestion"
	"github.com/JaimeStill/harbor/internal/jobs"
	"github.com/JaimeStill/harbor/internal/records"
	"github.com/JaimeStill/harbor/pkg/checksum"
	"github.com/JaimeStill/harbor/pkg/queue"
	"github.com/JaimeStill/harbor/pkg/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// store fakes both the file and record stores over one map so status
// transitions follow the guarded PENDING -> terminal rule.
type store struct {
	mu          sync.Mutex
	files       map[uuid.UUID]*files.RawFile
	records     map[uuid.UUID][]records.Record
	transitions map[uuid.UUID][]files.Status
	findErr     error
	replaceErr  error
	markCtxErr  error
}

func newStore() *store {
	return &store{
		files:       make(map[uuid.UUID]*files.RawFile),
		records:     make(map[uuid.UUID][]records.Record),
		transitions: make(map[uuid.UUID][]files.Status),
	}
}

func (s *store) add(f *files.RawFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[f.ID] = f
}

func (s *store) status(id uuid.UUID) files.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[id].Status
}

func (s *store) Find(_ context.Context, tenantID, id uuid.UUID) (*files.RawFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	f, ok := s.files[id]
	if !ok || f.TenantID != tenantID {
		return nil, files.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (s *store) MarkFailed(ctx context.Context, tenantID, id uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCtxErr = ctx.Err()
	f, ok := s.files[id]
	if !ok || f.TenantID != tenantID || f.Status != files.StatusPending {
		return files.ErrNotPending
	}
	f.Status = files.StatusFailed
	f.Error = &reason
	s.transitions[id] = append(s.transitions[id], files.StatusFailed)
	return nil
}

func (s *store) ReplaceForFile(_ context.Context, cmd records.ReplaceCommand) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaceErr != nil {
		return 0, s.replaceErr
	}
	f, ok := s.files[cmd.FileID]
	if !ok || f.Status != files.StatusPending {
		return 0, files.ErrNotPending
	}

	rows := make([]records.Record, len(cmd.Rows))
	for i, data := range cmd.Rows {
		rows[i] = records.Record{
			ID:         uuid.New(),
			TenantID:   cmd.TenantID,
			FileID:     cmd.FileID,
			RowIndex:   i,
			RecordType: cmd.RecordType,
			Data:       data,
		}
	}
	s.records[cmd.FileID] = rows

	count := len(rows)
	f.Status = files.StatusProcessed
	f.Checksum = &cmd.Checksum
	f.RowCount = &count
	s.transitions[cmd.FileID] = append(s.transitions[cmd.FileID], files.StatusProcessed)
	return count, nil
}

type blobs struct {
	content map[string]string
	err     error
}

func (b blobs) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if b.err != nil {
		return nil, b.err
	}
	c, ok := b.content[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(c)), nil
}

type fixture struct {
	store    *store
	pipeline *ingestion.Pipeline
	file     *files.RawFile
}

func newFixture(content string, maxBytes int64) *fixture {
	s := newStore()
	tenant := uuid.New()
	id := uuid.New()
	f := &files.RawFile{
		ID:         id,
		TenantID:   tenant,
		Type:       files.TypeSales,
		StorageKey: files.StorageKey(tenant, id, "csv"),
		Status:     files.StatusPending,
	}
	s.add(f)

	b := blobs{content: map[string]string{f.StorageKey: content}}
	return &fixture{
		store:    s,
		pipeline: ingestion.New(s, s, b, maxBytes, discard),
		file:     f,
	}
}

func (fx *fixture) withBlobs(b blobs) *fixture {
	fx.pipeline = ingestion.New(fx.store, fx.store, b, 1<<20, discard)
	return fx
}

func TestProcessPersistsRecords(t *testing.T) {
	content := "a,b\n1,2\n3,4\n"
	fx := newFixture(content, 1<<20)

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, false)
	require.NoError(t, err)

	assert.Equal(t, files.StatusProcessed, fx.store.status(fx.file.ID))

	got := fx.store.records[fx.file.ID]
	require.Len(t, got, 2)
	assert.Equal(t, "sales", got[0].RecordType)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got[0].Data)
	assert.Equal(t, 1, got[1].RowIndex)

	f := fx.store.files[fx.file.ID]
	require.NotNil(t, f.Checksum)
	assert.Equal(t, checksum.Bytes([]byte(content)), *f.Checksum)
	assert.Equal(t, 2, *f.RowCount)
}

func TestProcessMissingFileIsPermanent(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, uuid.New(), false)
	assert.ErrorIs(t, err, files.ErrNotFound)
	assert.True(t, queue.IsPermanent(err))
	assert.Empty(t, fx.store.transitions)
}

func TestProcessOtherTenantIsNotFound(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)

	err := fx.pipeline.Process(context.Background(), uuid.New(), fx.file.ID, false)
	assert.ErrorIs(t, err, files.ErrNotFound)
	assert.Equal(t, files.StatusPending, fx.store.status(fx.file.ID))
}

func TestProcessLookupErrorIsRetryable(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)
	fx.store.findErr = errors.New("connection reset")

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, true)
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
}

func TestProcessMalformedMarksFailed(t *testing.T) {
	fx := newFixture("a,b\n1,2,3\n", 1<<20)

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, false)
	assert.ErrorIs(t, err, ingestion.ErrParse)
	assert.True(t, queue.IsPermanent(err))
	assert.Equal(t, files.StatusFailed, fx.store.status(fx.file.ID))
	assert.Empty(t, fx.store.records[fx.file.ID])
}

func TestProcessOversizeIsParseFailure(t *testing.T) {
	fx := newFixture("a,b\n1,2\n", 4)

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, false)
	assert.ErrorIs(t, err, ingestion.ErrParse)
	assert.Equal(t, files.StatusFailed, fx.store.status(fx.file.ID))
}

func TestProcessTransferFailure(t *testing.T) {
	tests := []struct {
		name   string
		final  bool
		status files.Status
	}{
		{"early attempt leaves pending", false, files.StatusPending},
		{"final attempt marks failed", true, files.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture("", 1<<20).withBlobs(blobs{err: errors.New("503 from storage")})

			err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, tt.final)
			assert.ErrorIs(t, err, ingestion.ErrTransfer)
			assert.False(t, queue.IsPermanent(err))
			assert.Equal(t, tt.status, fx.store.status(fx.file.ID))
		})
	}
}

func TestProcessMissingBlobIsTransferFailure(t *testing.T) {
	fx := newFixture("", 1<<20).withBlobs(blobs{content: map[string]string{}})

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, false)
	assert.ErrorIs(t, err, ingestion.ErrTransfer)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessStoreFailureOnFinalAttempt(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)
	fx.store.replaceErr = errors.New("deadlock detected")

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := fx.pipeline.Process(ctx, fx.file.TenantID, fx.file.ID, true)
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	assert.Equal(t, files.StatusFailed, fx.store.status(fx.file.ID))
	assert.NoError(t, fx.store.markCtxErr, "failure must be recorded on a live context")
}

func TestProcessInterruptedFinalAttemptStaysPending(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)
	fx.store.replaceErr = context.Canceled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fx.pipeline.Process(ctx, fx.file.TenantID, fx.file.ID, true)
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	assert.Equal(t, files.StatusPending, fx.store.status(fx.file.ID))
	assert.Empty(t, fx.store.transitions[fx.file.ID])

	fx.store.replaceErr = nil
	require.NoError(t, fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, true))
	assert.Equal(t, files.StatusProcessed, fx.store.status(fx.file.ID))
	assert.Len(t, fx.store.records[fx.file.ID], 1)
}

func TestProcessIsMonotonic(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)
	ctx := context.Background()

	require.NoError(t, fx.pipeline.Process(ctx, fx.file.TenantID, fx.file.ID, false))
	require.NoError(t, fx.pipeline.Process(ctx, fx.file.TenantID, fx.file.ID, false))

	assert.Equal(t, []files.Status{files.StatusProcessed}, fx.store.transitions[fx.file.ID])
	assert.Len(t, fx.store.records[fx.file.ID], 1)
}

func TestProcessFailedFileIsNotRetouched(t *testing.T) {
	fx := newFixture("a\n1\n", 1<<20)
	fx.store.files[fx.file.ID].Status = files.StatusFailed

	err := fx.pipeline.Process(context.Background(), fx.file.TenantID, fx.file.ID, false)
	require.NoError(t, err)
	assert.Equal(t, files.StatusFailed, fx.store.status(fx.file.ID))
	assert.Empty(t, fx.store.records[fx.file.ID])
}

func TestHandlerDecodesPayload(t *testing.T) {
	fx := newFixture("a,b\n1,2\n", 1<<20)

	payload, err := json.Marshal(jobs.ProcessFile{FileID: fx.file.ID, TenantID: fx.file.TenantID})
	require.NoError(t, err)

	job := &queue.Job{
		ID:          uuid.New(),
		Queue:       jobs.QueueFileProcessing,
		Kind:        jobs.KindProcessFile,
		Payload:     payload,
		Attempts:    1,
		MaxAttempts: 3,
	}

	require.NoError(t, fx.pipeline.Handler()(context.Background(), job))
	assert.Equal(t, files.StatusProcessed, fx.store.status(fx.file.ID))
}

func TestPipelineOnFabric(t *testing.T) {
	fx := newFixture("a,b\n1,2,3\n", 1<<20)

	cfg := &queue.Config{
		Driver:       "memory",
		PollInterval: "5ms",
		ReapInterval: "1h",
		StaleAfter:   "2h",
		BackoffBase:  "1ms",
		BackoffMax:   "2ms",
	}
	require.NoError(t, cfg.Finalize(nil, jobs.PoolDefaults()))

	broker := queue.NewMemory(nil)
	fabric := queue.NewFabric(broker, cfg, discard)
	fabric.Handle(jobs.QueueFileProcessing, jobs.KindProcessFile, fx.pipeline.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fabric.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	job, err := jobs.NewProducer(fabric).ProcessFile(ctx, jobs.ProcessFile{FileID: fx.file.ID, TenantID: fx.file.TenantID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := broker.Get(job.ID)
		return ok && j.Status == queue.StatusFailed
	}, 3*time.Second, 5*time.Millisecond)

	j, _ := broker.Get(job.ID)
	assert.Equal(t, 1, j.Attempts, "parse failures are not retried")
	assert.Equal(t, files.StatusFailed, fx.store.status(fx.file.ID))
}
