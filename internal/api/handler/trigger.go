package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/api/response"
	"github.com/nmehta6/jobforge/internal/engine"
)

// Trigger defines the engine surface the trigger endpoints depend on.
type Trigger interface {
	CronTick(ctx context.Context, spaceID *uuid.UUID) (*engine.TickResult, error)
	ProcessManual(ctx context.Context) (*engine.TickResult, error)
}

// NewCronTriggerHandler handles POST and GET /api/v1/jobs/cron: the periodic
// entry point invoked by an outside scheduler. GET exists for manual
// browser-triggered testing and behaves identically.
func NewCronTriggerHandler(eng Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var spaceID *uuid.UUID
		if raw := r.URL.Query().Get("space_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"space_id must be a valid UUID", nil)
				return
			}
			spaceID = &id
		}

		result, err := eng.CronTick(r.Context(), spaceID)
		if err != nil {
			// Infrastructure failure: surface a 5xx and let the external
			// invoker retry on its own schedule.
			response.Error(w, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE",
				"Job engine could not complete the tick", nil)
			return
		}

		response.JSON(w, tickResponse{
			Processed: result.Processed,
			Enqueued:  result.Enqueued,
			Skipped:   result.Skipped,
			Reset:     result.Reset,
			Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}

// NewProcessJobsHandler handles POST /api/v1/jobs/process: scans pending
// one-off import/export requests and runs them, bypassing the due-time
// resolver.
func NewProcessJobsHandler(eng Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := eng.ProcessManual(r.Context())
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "ENGINE_UNAVAILABLE",
				"Job engine could not process pending requests", nil)
			return
		}

		response.JSON(w, tickResponse{
			Processed: result.Processed,
			Enqueued:  result.Enqueued,
			Skipped:   result.Skipped,
			Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
		})
	}
}

type tickResponse struct {
	Processed int    `json:"processed"`
	Enqueued  int    `json:"enqueued"`
	Skipped   int    `json:"skipped"`
	Reset     int    `json:"reset,omitempty"`
	Timestamp string `json:"timestamp"`
}
