package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/nmehta6/jobforge/internal/api/middleware"
	"github.com/nmehta6/jobforge/internal/api/response"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
)

// AlertLister is the store surface the alert read endpoint depends on.
type AlertLister interface {
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*models.Alert, error)
}

// Acknowledger marks alerts as seen. Implemented by the alert manager.
// Scoped to the caller's space; foreign alerts are ErrNotFound.
type Acknowledger interface {
	Acknowledge(ctx context.Context, alertID, spaceID uuid.UUID) error
}

// NewListAlertsHandler handles GET /api/v1/alerts, newest first, scoped to
// the caller's space. By default only unacknowledged alerts are returned;
// pass acknowledged=true or acknowledged=all to widen.
func NewListAlertsHandler(st AlertLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaceID, ok := mw.GetSpaceID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing space", nil)
			return
		}

		unack := false
		filter := store.AlertFilter{SpaceID: spaceID, Acknowledged: &unack}

		switch raw := r.URL.Query().Get("acknowledged"); raw {
		case "", "false":
		case "all":
			filter.Acknowledged = nil
		default:
			ack, err := strconv.ParseBool(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"acknowledged must be true, false or all", nil)
				return
			}
			filter.Acknowledged = &ack
		}

		if raw := r.URL.Query().Get("schedule_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"schedule_id must be a valid UUID", nil)
				return
			}
			filter.ScheduleID = &id
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

		alerts, err := st.ListAlerts(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list alerts", nil)
			return
		}
		if alerts == nil {
			alerts = []*models.Alert{}
		}

		response.JSON(w, alerts)
	}
}

// NewAcknowledgeAlertHandler handles POST /api/v1/alerts/{alertID}/ack.
// Acknowledging twice is a no-op.
func NewAcknowledgeAlertHandler(mgr Acknowledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spaceID, ok := mw.GetSpaceID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing space", nil)
			return
		}

		alertID, err := uuid.Parse(chi.URLParam(r, "alertID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"alertID must be a valid UUID", nil)
			return
		}

		if err := mgr.Acknowledge(r.Context(), alertID, spaceID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to acknowledge alert", nil)
			return
		}

		response.JSON(w, map[string]any{"acknowledged": true})
	}
}
