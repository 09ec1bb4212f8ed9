package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrDuplicateActiveJob is returned by CreateJob when a job for the same
// (type, resource_id) is already pending or processing. Callers re-triggering
// work that is already in flight should treat this as a no-op, not a failure.
var ErrDuplicateActiveJob = errors.New("active job already exists for resource")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	GetDefaultSpace(ctx context.Context) (*models.Space, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, spaceID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, spaceID uuid.UUID) error

	CreateSchedule(ctx context.Context, sched *models.ScheduleDefinition) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.ScheduleDefinition, error)
	ListEnabledSchedules(ctx context.Context, domain string) ([]*models.ScheduleDefinition, error)
	ListDueSchedules(ctx context.Context, spaceID *uuid.UUID, now time.Time) ([]*models.ScheduleDefinition, error)
	RecordScheduleRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRunAt time.Time) error
	SoftDeleteSchedule(ctx context.Context, id uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id, spaceID uuid.UUID) (*models.Job, error)
	DequeueNextJob(ctx context.Context) (*models.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) (bool, error)
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)
	SetJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	ResetStuckJobs(ctx context.Context, olderThan time.Time) (int, error)

	CreateTransferRequest(ctx context.Context, req *models.TransferRequest) error
	ListPendingTransferRequests(ctx context.Context, limit int) ([]*models.TransferRequest, error)
	MarkTransferRequestQueued(ctx context.Context, id uuid.UUID, jobID uuid.UUID) error

	CreateExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error
	ListExecutionRecords(ctx context.Context, filter ExecutionFilter) ([]*models.ExecutionRecord, error)
	CountConsecutiveFailures(ctx context.Context, scheduleID uuid.UUID) (int, error)

	UpsertOpenAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id, spaceID uuid.UUID) error
}

// ExecutionFilter narrows ListExecutionRecords. Zero values mean "any".
type ExecutionFilter struct {
	SpaceID    uuid.UUID
	ScheduleID *uuid.UUID
	JobID      *uuid.UUID
	Status     string
	Since      time.Time
	Limit      int
}

// AlertFilter narrows ListAlerts. Acknowledged nil means both states.
type AlertFilter struct {
	SpaceID      uuid.UUID
	ScheduleID   *uuid.UUID
	Acknowledged *bool
	Limit        int
}
