// Package jobs contains the asynq task definitions and the worker that
// executes the background maintenance of the billing data: nightly JSON
// backups and audit-log retention.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBackupExport writes a full JSON backup of the record set to disk.
	TaskBackupExport = "backup:export"
	// TaskAuditCleanup prunes audit entries past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// BackupExportPayload parameterises a backup run.
type BackupExportPayload struct {
	Prefix string `json:"prefix,omitempty"`
}

// NewBackupExportTask constructs the backup task.
func NewBackupExportTask(payload BackupExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackupExport, data), nil
}

// AuditCleanupPayload parameterises the retention sweep.
type AuditCleanupPayload struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewAuditCleanupTask constructs the audit cleanup task.
func NewAuditCleanupTask(payload AuditCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, data), nil
}
