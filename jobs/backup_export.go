package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/andamio-erp/andamio-erp/internal/billing"
	"github.com/andamio-erp/andamio-erp/internal/export"
	jobmetrics "github.com/andamio-erp/andamio-erp/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RecordLister is the slice of the billing repository the backup reads.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]billing.WorkRecord, error)
}

// BackupExportJob writes the full record set as a JSON file into Dir.
type BackupExportJob struct {
	Records RecordLister
	Dir     string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewBackupExportJob initialises the backup handler.
func NewBackupExportJob(records RecordLister, dir string, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupExportJob {
	return &BackupExportJob{
		Records: records,
		Dir:     dir,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one backup run.
func (j *BackupExportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Records == nil {
		return errors.New("backup export: handler not configured")
	}
	var payload BackupExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Prefix == "" {
		payload.Prefix = "copia"
	}
	if j.Dir == "" {
		return errors.New("backup export: directory not configured")
	}

	tracker := j.metrics().Track(TaskBackupExport)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	records, err := j.Records.ListRecords(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list records", slog.Any("error", err))
		return resultErr
	}
	data, err := export.Backup(records)
	if err != nil {
		resultErr = err
		logger.Error("serialise backup", slog.Any("error", err))
		return resultErr
	}

	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		resultErr = err
		return resultErr
	}
	path := filepath.Join(j.Dir, export.FileName(payload.Prefix, "json", j.now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		resultErr = err
		logger.Error("write backup", slog.String("path", path), slog.Any("error", err))
		return resultErr
	}

	j.metrics().AddRecords(TaskBackupExport, len(records))
	logger.Info("backup written",
		slog.String("path", path),
		slog.Int("records", len(records)),
		slog.Int("bytes", len(data)))
	return resultErr
}

func (j *BackupExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBackupExport))
	}
	return slog.Default().With(slog.String("job", TaskBackupExport))
}

func (j *BackupExportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *BackupExportJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
