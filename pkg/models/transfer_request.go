package models

import (
	"time"

	"github.com/google/uuid"
)

// Transfer request statuses.
const (
	TransferStatusPending = "pending"
	TransferStatusQueued  = "queued"
)

// TransferRequest is a one-off import or export request created by a manual
// trigger rather than a schedule. The manual processing endpoint scans pending
// requests in bounded batches and enqueues a job per request.
type TransferRequest struct {
	ID         uuid.UUID  `db:"id"          json:"id"`
	SpaceID    uuid.UUID  `db:"space_id"    json:"space_id"`
	Kind       string     `db:"kind"        json:"kind"` // import or export
	ResourceID uuid.UUID  `db:"resource_id" json:"resource_id"`
	Status     string     `db:"status"      json:"status"`
	JobID      *uuid.UUID `db:"job_id"      json:"job_id,omitempty"`
	CreatedAt  time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"  json:"updated_at"`
}
