package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andamio-erp/andamio-erp/internal/billing"
)

type stubLister struct {
	records []billing.WorkRecord
	err     error
}

func (s *stubLister) ListRecords(context.Context) ([]billing.WorkRecord, error) {
	return s.records, s.err
}

func backupTask(t *testing.T, payload BackupExportPayload) *asynq.Task {
	t.Helper()
	task, err := NewBackupExportTask(payload)
	require.NoError(t, err)
	return task
}

func TestBackupExportWritesFile(t *testing.T) {
	dir := t.TempDir()
	lister := &stubLister{records: []billing.WorkRecord{
		{
			ID:      "r1",
			Code:    "EXP-001",
			Company: "Construcciones Vega",
			Base:    decimal.RequireFromString("1000"),
			Date:    time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
			Status:  billing.StatusPending,
		},
	}}

	job := NewBackupExportJob(lister, dir, nil, nil)
	job.clock = func() time.Time {
		return time.Date(2026, 3, 31, 2, 0, 0, 0, time.UTC)
	}

	require.NoError(t, job.Handle(context.Background(), backupTask(t, BackupExportPayload{})))

	path := filepath.Join(dir, "copia-20260331.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(data, &docs))
	require.Len(t, docs, 1)
	require.Equal(t, "r1", docs[0]["id"])
}

func TestBackupExportCustomPrefix(t *testing.T) {
	dir := t.TempDir()
	job := NewBackupExportJob(&stubLister{}, dir, nil, nil)
	job.clock = func() time.Time {
		return time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC)
	}

	require.NoError(t, job.Handle(context.Background(), backupTask(t, BackupExportPayload{Prefix: "nocturna"})))

	_, err := os.Stat(filepath.Join(dir, "nocturna-20260401.json"))
	require.NoError(t, err)
}

func TestBackupExportListFailure(t *testing.T) {
	job := NewBackupExportJob(&stubLister{err: errors.New("boom")}, t.TempDir(), nil, nil)
	err := job.Handle(context.Background(), backupTask(t, BackupExportPayload{}))
	require.Error(t, err)
}

func TestAuditCleanupDefaultsRetention(t *testing.T) {
	var got time.Duration
	cleaner := cleanerFunc(func(_ context.Context, olderThan time.Duration) error {
		got = olderThan
		return nil
	})
	job := NewAuditCleanupJob(cleaner, nil, nil)

	task, err := NewAuditCleanupTask(AuditCleanupPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 365*24*time.Hour, got)
}

type cleanerFunc func(ctx context.Context, olderThan time.Duration) error

func (f cleanerFunc) Cleanup(ctx context.Context, olderThan time.Duration) error {
	return f(ctx, olderThan)
}
