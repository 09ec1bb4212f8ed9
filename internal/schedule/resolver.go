package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DueItem is one schedule whose next run time has passed, normalized across
// the three domains.
type DueItem struct {
	ScheduleID uuid.UUID
	SpaceID    uuid.UUID
	Domain     string
	ResourceID uuid.UUID
}

// Resolver computes which schedules are due. It is a pure read step: callers
// decide what to enqueue, so a manual "run all now" action and the cron tick
// share the same resolution path.
type Resolver struct {
	store Store
	now   func() time.Time
}

// NewResolver creates a Resolver using the wall clock.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// ResolveDue returns due items across all domains ordered oldest-overdue
// first, optionally scoped to one space. A schedule that has never run is due
// immediately and sorts before everything else.
func (r *Resolver) ResolveDue(ctx context.Context, spaceID *uuid.UUID) ([]DueItem, error) {
	scheds, err := r.store.ListDueSchedules(ctx, spaceID, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolve due schedules: %w", err)
	}

	items := make([]DueItem, 0, len(scheds))
	for _, sd := range scheds {
		items = append(items, DueItem{
			ScheduleID: sd.ID,
			SpaceID:    sd.SpaceID,
			Domain:     sd.Domain,
			ResourceID: sd.ResourceID,
		})
	}
	return items, nil
}
