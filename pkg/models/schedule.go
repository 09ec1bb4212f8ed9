package models

import (
	"time"

	"github.com/google/uuid"
)

// Schedule domains. Each domain has its own configuration surface elsewhere in
// the application; the engine treats them uniformly and only dispatches to a
// per-domain executor at run time.
const (
	DomainDataSync = "data_sync"
	DomainWorkflow = "workflow"
	DomainNotebook = "notebook"
)

// ScheduleDefinition is a recurring rule describing when a unit of work should
// run. Exactly one of IntervalSeconds or CronExpr is set. Soft-deleted
// schedules keep their rows but are excluded from due computation.
type ScheduleDefinition struct {
	ID              uuid.UUID  `db:"id"               json:"id"`
	SpaceID         uuid.UUID  `db:"space_id"         json:"space_id"`
	Domain          string     `db:"domain"           json:"domain"`
	ResourceID      uuid.UUID  `db:"resource_id"      json:"resource_id"`
	IntervalSeconds *int       `db:"interval_seconds" json:"interval_seconds,omitempty"`
	CronExpr        *string    `db:"cron_expr"        json:"cron_expr,omitempty"`
	Enabled         bool       `db:"enabled"          json:"enabled"`
	LastRunAt       *time.Time `db:"last_run_at"      json:"last_run_at,omitempty"`
	NextRunAt       *time.Time `db:"next_run_at"      json:"next_run_at,omitempty"`
	DeletedAt       *time.Time `db:"deleted_at"       json:"-"`
	CreatedAt       time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"       json:"updated_at"`
}
