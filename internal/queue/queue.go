// Package queue implements the durable job queue: enqueue with the
// at-most-one-active guarantee, atomic FIFO dequeue, and idempotent terminal
// transitions. All state lives in Postgres; Redis only mirrors job status for
// cheap polling.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/cache"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
)

// ErrEmpty is returned by Dequeue when no pending job exists. The processing
// loop treats it as "done for this tick", never as a failure.
var ErrEmpty = errors.New("job queue is empty")

// ErrDuplicateActiveJob mirrors the store sentinel so callers can depend on
// the queue package alone.
var ErrDuplicateActiveJob = store.ErrDuplicateActiveJob

// ErrAttemptsExhausted is returned by Requeue when a failed job has reached
// its re-enqueue ceiling.
var ErrAttemptsExhausted = errors.New("job re-enqueue ceiling reached")

const statusMirrorTTL = 30 * time.Minute

// Store is the subset of the data layer the queue needs.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id, spaceID uuid.UUID) (*models.Job, error)
	DequeueNextJob(ctx context.Context) (*models.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) (bool, error)
	FailJob(ctx context.Context, id uuid.UUID, errMsg string) (bool, error)
	SetJobProgress(ctx context.Context, id uuid.UUID, progress int) error
	ResetStuckJobs(ctx context.Context, olderThan time.Time) (int, error)
}

// EnqueueRequest describes a job to create.
type EnqueueRequest struct {
	SpaceID          uuid.UUID
	Type             string
	ResourceID       uuid.UUID
	SourceScheduleID *uuid.UUID
}

// Queue is the job queue. Safe for concurrent use; every mutation is a
// single guarded statement in the store.
type Queue struct {
	store       Store
	cache       cache.Cache
	maxAttempts int
}

// New creates a Queue. maxAttempts caps how many times a failed job may be
// re-enqueued as a fresh row.
func New(st Store, ca cache.Cache, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Queue{store: st, cache: ca, maxAttempts: maxAttempts}
}

// Enqueue creates a pending job. Returns ErrDuplicateActiveJob when a job for
// the same (type, resource_id) is already pending or processing; idempotent
// re-triggers should treat that as success.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (*models.Job, error) {
	now := time.Now().UTC()
	job := &models.Job{
		ID:               uuid.New(),
		SpaceID:          req.SpaceID,
		Type:             req.Type,
		ResourceID:       req.ResourceID,
		SourceScheduleID: req.SourceScheduleID,
		Status:           models.JobStatusPending,
		Attempt:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := q.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateActiveJob) {
			return nil, ErrDuplicateActiveJob
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	q.mirrorStatus(ctx, job.SpaceID, job.ID, models.JobStatusPending)
	return job, nil
}

// Dequeue claims the oldest pending job and transitions it to processing in
// one atomic statement. Returns ErrEmpty when there is nothing to do; never
// blocks waiting for work.
func (q *Queue) Dequeue(ctx context.Context) (*models.Job, error) {
	job, err := q.store.DequeueNextJob(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	q.mirrorStatus(ctx, job.SpaceID, job.ID, models.JobStatusProcessing)
	return job, nil
}

// Complete marks a job completed. Calling it on an already-terminal job is a
// no-op: duplicate completion signals occur when the trigger endpoint itself
// is retried.
func (q *Queue) Complete(ctx context.Context, id, spaceID uuid.UUID) error {
	applied, err := q.store.CompleteJob(ctx, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if !applied {
		slog.Debug("job already terminal, complete ignored", "job_id", id)
		return nil
	}

	q.mirrorStatus(ctx, spaceID, id, models.JobStatusCompleted)
	return nil
}

// Fail marks a job failed with an error message. Same idempotency contract as
// Complete.
func (q *Queue) Fail(ctx context.Context, id, spaceID uuid.UUID, errMsg string) error {
	applied, err := q.store.FailJob(ctx, id, errMsg)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if !applied {
		slog.Debug("job already terminal, fail ignored", "job_id", id)
		return nil
	}

	q.mirrorStatus(ctx, spaceID, id, models.JobStatusFailed)
	return nil
}

// SetProgress updates a processing job's progress percentage.
func (q *Queue) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if err := q.store.SetJobProgress(ctx, id, progress); err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

// Get returns a job by id, scoped to the given space. Jobs belonging to
// another space are ErrNotFound.
func (q *Queue) Get(ctx context.Context, id, spaceID uuid.UUID) (*models.Job, error) {
	return q.store.GetJob(ctx, id, spaceID)
}

// Requeue creates a fresh pending job from a failed one, with the attempt
// counter advanced. Fails with ErrAttemptsExhausted past the ceiling and with
// ErrDuplicateActiveJob if a newer job for the resource is already active.
func (q *Queue) Requeue(ctx context.Context, failedJobID, spaceID uuid.UUID) (*models.Job, error) {
	prev, err := q.store.GetJob(ctx, failedJobID, spaceID)
	if err != nil {
		return nil, fmt.Errorf("requeue job: %w", err)
	}
	if prev.Status != models.JobStatusFailed {
		return nil, fmt.Errorf("requeue job: job %s is %s, only failed jobs can be requeued", prev.ID, prev.Status)
	}
	if prev.Attempt >= q.maxAttempts {
		return nil, ErrAttemptsExhausted
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:               uuid.New(),
		SpaceID:          prev.SpaceID,
		Type:             prev.Type,
		ResourceID:       prev.ResourceID,
		SourceScheduleID: prev.SourceScheduleID,
		Status:           models.JobStatusPending,
		Attempt:          prev.Attempt + 1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := q.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateActiveJob) {
			return nil, ErrDuplicateActiveJob
		}
		return nil, fmt.Errorf("requeue job: %w", err)
	}

	q.mirrorStatus(ctx, job.SpaceID, job.ID, models.JobStatusPending)
	return job, nil
}

// ResetStuck flips processing jobs untouched for longer than timeout back to
// pending. Safe to run on every tick: terminal transitions are idempotent and
// a re-run executor attempt is bounded by the same retry policy.
func (q *Queue) ResetStuck(ctx context.Context, timeout time.Duration) (int, error) {
	n, err := q.store.ResetStuckJobs(ctx, time.Now().UTC().Add(-timeout))
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	if n > 0 {
		slog.Warn("reset stuck jobs to pending", "count", n, "timeout", timeout)
	}
	return n, nil
}

// mirrorStatus best-effort mirrors a job status into Redis for the polling
// read path. Queue correctness never depends on the mirror.
func (q *Queue) mirrorStatus(ctx context.Context, spaceID, id uuid.UUID, status string) {
	if q.cache == nil {
		return
	}
	if err := q.cache.SetJobStatus(ctx, spaceID, id, status, statusMirrorTTL); err != nil {
		slog.Warn("job status mirror update failed", "job_id", id, "error", err)
	}
}
