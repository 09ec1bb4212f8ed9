package models

import (
	"time"

	"github.com/google/uuid"
)

// Execution record statuses.
const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusFailed  = "failed"
)

// ExecutionRecord is an immutable audit row for one completed run attempt,
// successful or failed. Records are append-only and never updated.
type ExecutionRecord struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	JobID           uuid.UUID  `db:"job_id"           json:"job_id"`
	ScheduleID      *uuid.UUID `db:"schedule_id"      json:"schedule_id,omitempty"`
	SpaceID         uuid.UUID  `db:"space_id"         json:"space_id"`
	Status          string     `db:"status"           json:"status"`
	StartedAt       time.Time  `db:"started_at"       json:"started_at"`
	CompletedAt     time.Time  `db:"completed_at"     json:"completed_at"`
	DurationMs      int64      `db:"duration_ms"      json:"duration_ms"`
	RecordsFetched  int        `db:"records_fetched"  json:"records_fetched"`
	RecordsInserted int        `db:"records_inserted" json:"records_inserted"`
	RecordsUpdated  int        `db:"records_updated"  json:"records_updated"`
	RecordsFailed   int        `db:"records_failed"   json:"records_failed"`
	ErrorMessage    *string    `db:"error_message"    json:"error_message,omitempty"`
}
