package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert types.
const (
	AlertTypeRepeatedFailure = "repeated_failure"
	AlertTypeSlowExecution   = "slow_execution"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is an operator-facing notification generated from patterns in
// execution history. Alerts are never deleted; acknowledgement is the only
// mutation after creation. An unacknowledged alert of the same
// (schedule_id, alert_type) is refreshed in place rather than duplicated.
type Alert struct {
	ID             uuid.UUID  `db:"id"              json:"id"`
	SpaceID        uuid.UUID  `db:"space_id"        json:"space_id"`
	ScheduleID     uuid.UUID  `db:"schedule_id"     json:"schedule_id"`
	AlertType      string     `db:"alert_type"      json:"alert_type"`
	Severity       string     `db:"severity"        json:"severity"`
	Message        string     `db:"message"         json:"message"`
	Acknowledged   bool       `db:"acknowledged"    json:"acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}
