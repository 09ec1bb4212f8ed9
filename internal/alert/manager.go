// Package alert raises operator alerts from patterns in execution history:
// repeated failures of a schedule and abnormally slow runs.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/pkg/models"
)

// Store is the subset of the data layer the manager needs.
type Store interface {
	CountConsecutiveFailures(ctx context.Context, scheduleID uuid.UUID) (int, error)
	UpsertOpenAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id, spaceID uuid.UUID) error
}

// Manager evaluates execution records against alerting thresholds. It keeps
// no in-process counters: consecutive failures are derived from the
// append-only execution history, so several engine instances can evaluate
// records without drifting apart.
type Manager struct {
	store            Store
	failureThreshold int
	slowThreshold    time.Duration
}

// New creates a Manager. failureThreshold is the number of consecutive failed
// runs that raises a repeated-failure alert (default 3); slowThreshold is the
// duration above which a run is flagged slow (default 5m).
func New(store Store, failureThreshold int, slowThreshold time.Duration) *Manager {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if slowThreshold <= 0 {
		slowThreshold = 5 * time.Minute
	}
	return &Manager{
		store:            store,
		failureThreshold: failureThreshold,
		slowThreshold:    slowThreshold,
	}
}

// OnExecutionRecord inspects one freshly written record. Manual jobs carry no
// schedule and are skipped; alerting tracks recurring work only.
func (m *Manager) OnExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error {
	if rec.ScheduleID == nil {
		return nil
	}
	scheduleID := *rec.ScheduleID

	if rec.Status == models.ExecutionStatusFailed {
		count, err := m.store.CountConsecutiveFailures(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("evaluate failure streak: %w", err)
		}
		if count >= m.failureThreshold {
			msg := fmt.Sprintf("schedule has failed %d consecutive runs; last error: %s",
				count, derefOr(rec.ErrorMessage, "unknown"))
			if err := m.raise(ctx, rec, models.AlertTypeRepeatedFailure, models.SeverityCritical, msg); err != nil {
				return err
			}
		}
	}

	// Slow-execution detection is independent of the failure streak and
	// applies to successful runs too.
	if rec.DurationMs > m.slowThreshold.Milliseconds() {
		msg := fmt.Sprintf("run took %dms, threshold is %dms",
			rec.DurationMs, m.slowThreshold.Milliseconds())
		if err := m.raise(ctx, rec, models.AlertTypeSlowExecution, models.SeverityWarning, msg); err != nil {
			return err
		}
	}

	return nil
}

// raise creates or refreshes the open alert for (schedule, type). The store
// upsert deduplicates: an unacknowledged alert is refreshed in place, so a
// sustained failure never floods the operator.
func (m *Manager) raise(ctx context.Context, rec *models.ExecutionRecord, alertType, severity, message string) error {
	now := time.Now().UTC()
	alert, err := m.store.UpsertOpenAlert(ctx, &models.Alert{
		ID:         uuid.New(),
		SpaceID:    rec.SpaceID,
		ScheduleID: *rec.ScheduleID,
		AlertType:  alertType,
		Severity:   severity,
		Message:    message,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("raise %s alert: %w", alertType, err)
	}

	slog.Warn("alert raised",
		"alert_id", alert.ID, "schedule_id", alert.ScheduleID,
		"type", alert.AlertType, "severity", alert.Severity)
	return nil
}

// Acknowledge marks an alert as seen by an operator. Scoped to the caller's
// space; alerts of another space are ErrNotFound. A later recurrence of the
// same condition opens a fresh alert.
func (m *Manager) Acknowledge(ctx context.Context, alertID, spaceID uuid.UUID) error {
	return m.store.AcknowledgeAlert(ctx, alertID, spaceID)
}

func derefOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}
