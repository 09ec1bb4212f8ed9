// Package schedule holds the schedule registry and the due-time resolver: the
// read/compute side of the engine that decides when recurring work should run.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/pkg/models"
	"github.com/robfig/cron/v3"
)

// Store is the subset of the data layer the registry needs.
type Store interface {
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.ScheduleDefinition, error)
	ListEnabledSchedules(ctx context.Context, domain string) ([]*models.ScheduleDefinition, error)
	ListDueSchedules(ctx context.Context, spaceID *uuid.UUID, now time.Time) ([]*models.ScheduleDefinition, error)
	RecordScheduleRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRunAt time.Time) error
}

// Registry reads schedule definitions and advances their run bookkeeping.
// All schedule state lives in the store; the registry holds no caches, so
// multiple engine instances stay consistent.
type Registry struct {
	store  Store
	parser cron.Parser
}

// NewRegistry creates a Registry. The cron parser accepts standard 5-field
// specs plus descriptors such as @hourly and @every.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:  store,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// ListEnabled returns enabled, non-deleted schedules, optionally filtered by
// domain ("" means all domains).
func (r *Registry) ListEnabled(ctx context.Context, domain string) ([]*models.ScheduleDefinition, error) {
	return r.store.ListEnabledSchedules(ctx, domain)
}

// NextRun computes the next run time for a schedule strictly after from.
// Interval schedules fire at from + interval; cron schedules at the first
// matching instant after from.
func (r *Registry) NextRun(sched *models.ScheduleDefinition, from time.Time) (time.Time, error) {
	switch {
	case sched.IntervalSeconds != nil:
		return from.Add(time.Duration(*sched.IntervalSeconds) * time.Second), nil
	case sched.CronExpr != nil:
		spec, err := r.parser.Parse(*sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", *sched.CronExpr, err)
		}
		return spec.Next(from), nil
	default:
		return time.Time{}, fmt.Errorf("schedule %s has no recurrence rule", sched.ID)
	}
}

// ValidateRecurrence checks a schedule's recurrence rule without persisting
// anything. Used by the configuration surface before a create or update.
func (r *Registry) ValidateRecurrence(sched *models.ScheduleDefinition) error {
	switch {
	case sched.IntervalSeconds != nil && sched.CronExpr != nil:
		return fmt.Errorf("schedule may have an interval or a cron expression, not both")
	case sched.IntervalSeconds != nil:
		if *sched.IntervalSeconds <= 0 {
			return fmt.Errorf("interval must be positive, got %d", *sched.IntervalSeconds)
		}
		return nil
	case sched.CronExpr != nil:
		if _, err := r.parser.Parse(*sched.CronExpr); err != nil {
			return fmt.Errorf("parse cron expression %q: %w", *sched.CronExpr, err)
		}
		return nil
	default:
		return fmt.Errorf("schedule needs an interval or a cron expression")
	}
}

// RecordRun advances a schedule after a run: last_run_at = ranAt and
// next_run_at computed from ranAt. Computing from the actual run time rather
// than the missed window collapses any backlog accumulated while the process
// was down into a single future run.
func (r *Registry) RecordRun(ctx context.Context, scheduleID uuid.UUID, ranAt time.Time) error {
	sched, err := r.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	next, err := r.NextRun(sched, ranAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	if err := r.store.RecordScheduleRun(ctx, scheduleID, ranAt, next); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}
