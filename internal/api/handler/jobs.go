package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/nmehta6/jobforge/internal/api/middleware"
	"github.com/nmehta6/jobforge/internal/api/response"
	"github.com/nmehta6/jobforge/internal/queue"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
)

// JobService is the queue surface the job endpoints depend on. All lookups
// are scoped to the caller's space; a job of another space is ErrNotFound.
type JobService interface {
	Get(ctx context.Context, id, spaceID uuid.UUID) (*models.Job, error)
	Requeue(ctx context.Context, failedJobID, spaceID uuid.UUID) (*models.Job, error)
}

// StatusMirror reads the cached job status written by the queue. Entries are
// keyed by space, so a poll from the wrong space misses and falls through to
// the scoped store lookup.
type StatusMirror interface {
	GetJobStatus(ctx context.Context, spaceID, jobID uuid.UUID) (string, bool, error)
}

// NewGetJobHandler handles GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaceID, ok := mw.GetSpaceID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing space", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"jobID must be a valid UUID", nil)
			return
		}

		job, err := jobs.Get(r.Context(), jobID, spaceID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}

		response.JSON(w, job)
	}
}

// NewJobStatusHandler handles GET /api/v1/jobs/{jobID}/status. The UI polls
// this while a job runs; the Redis mirror answers most polls without touching
// Postgres, with the job row as fallback once the mirror entry expires.
func NewJobStatusHandler(jobs JobService, mirror StatusMirror) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaceID, ok := mw.GetSpaceID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing space", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"jobID must be a valid UUID", nil)
			return
		}

		if mirror != nil {
			if status, ok, err := mirror.GetJobStatus(r.Context(), spaceID, jobID); err == nil && ok {
				response.JSON(w, statusResponse(jobID, status))
				return
			}
		}

		job, err := jobs.Get(r.Context(), jobID, spaceID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}

		response.JSON(w, statusResponse(job.ID, job.Status))
	}
}

// NewRetryJobHandler handles POST /api/v1/jobs/{jobID}/retry: re-enqueues a
// failed job as a fresh row with the attempt counter advanced.
func NewRetryJobHandler(jobs JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaceID, ok := mw.GetSpaceID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing space", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"jobID must be a valid UUID", nil)
			return
		}

		job, err := jobs.Requeue(r.Context(), jobID, spaceID)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			case errors.Is(err, queue.ErrDuplicateActiveJob):
				response.Error(w, http.StatusConflict, "DUPLICATE_ACTIVE_JOB",
					"A job for this resource is already pending or processing", nil)
			case errors.Is(err, queue.ErrAttemptsExhausted):
				response.Error(w, http.StatusUnprocessableEntity, "ATTEMPTS_EXHAUSTED",
					"Job has reached its re-enqueue ceiling", nil)
			default:
				response.Error(w, http.StatusUnprocessableEntity, "NOT_RETRYABLE", err.Error(), nil)
			}
			return
		}

		response.Created(w, job)
	}
}

// jobStatusResponse is the light polling answer served from the mirror.
type jobStatusResponse struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	CheckedAt string    `json:"checked_at"`
}

func statusResponse(id uuid.UUID, status string) jobStatusResponse {
	return jobStatusResponse{
		ID:        id,
		Status:    status,
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
