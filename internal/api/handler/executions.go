package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	mw "github.com/nmehta6/jobforge/internal/api/middleware"
	"github.com/nmehta6/jobforge/internal/api/response"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
)

// ExecutionLister is the store surface the execution history endpoint
// depends on.
type ExecutionLister interface {
	ListExecutionRecords(ctx context.Context, filter store.ExecutionFilter) ([]*models.ExecutionRecord, error)
}

// NewListExecutionsHandler handles GET /api/v1/executions: recent execution
// records for the operator UI, scoped to the caller's space.
func NewListExecutionsHandler(st ExecutionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaceID, ok := mw.GetSpaceID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing space", nil)
			return
		}

		filter := store.ExecutionFilter{SpaceID: spaceID}

		if raw := r.URL.Query().Get("schedule_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"schedule_id must be a valid UUID", nil)
				return
			}
			filter.ScheduleID = &id
		}
		if raw := r.URL.Query().Get("job_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"job_id must be a valid UUID", nil)
				return
			}
			filter.JobID = &id
		}
		if status := r.URL.Query().Get("status"); status != "" {
			if status != models.ExecutionStatusSuccess && status != models.ExecutionStatusFailed {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"status must be success or failed", nil)
				return
			}
			filter.Status = status
		}
		if raw := r.URL.Query().Get("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = since
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			filter.Limit = limit
		}

		recs, err := st.ListExecutionRecords(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list execution records", nil)
			return
		}
		if recs == nil {
			recs = []*models.ExecutionRecord{}
		}

		response.JSON(w, recs)
	}
}
