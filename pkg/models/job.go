package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. A job moves pending -> processing -> {completed, failed};
// both terminal transitions are idempotent at the store level.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job types. The first three mirror the schedule domains; import and export
// are one-off jobs created by manual triggers rather than schedules.
const (
	JobTypeDataSync = "data_sync"
	JobTypeWorkflow = "workflow"
	JobTypeNotebook = "notebook"
	JobTypeImport   = "import"
	JobTypeExport   = "export"
)

// Job is one concrete, queued unit of work derived from a schedule or a manual
// trigger. At most one job per (type, resource_id) may be pending or
// processing at any time; the store enforces this with a partial unique index.
type Job struct {
	ID               uuid.UUID  `db:"id"                 json:"id"`
	SpaceID          uuid.UUID  `db:"space_id"           json:"space_id"`
	Type             string     `db:"type"               json:"type"`
	ResourceID       uuid.UUID  `db:"resource_id"        json:"resource_id"`
	SourceScheduleID *uuid.UUID `db:"source_schedule_id" json:"source_schedule_id,omitempty"`
	Status           string     `db:"status"             json:"status"`
	Progress         int        `db:"progress"           json:"progress"`
	Attempt          int        `db:"attempt"            json:"attempt"`
	ErrorMessage     *string    `db:"error_message"      json:"error_message,omitempty"`
	CreatedAt        time.Time  `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"         json:"updated_at"`
}
