// Package engine ties resolution, enqueueing and execution together behind
// the trigger endpoints: one cron tick or one manual processing pass is a
// single Engine call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/queue"
	"github.com/nmehta6/jobforge/internal/runner"
	"github.com/nmehta6/jobforge/internal/schedule"
	"github.com/nmehta6/jobforge/pkg/models"
)

// TransferStore is the slice of the data layer used for manual one-off
// import/export requests.
type TransferStore interface {
	ListPendingTransferRequests(ctx context.Context, limit int) ([]*models.TransferRequest, error)
	MarkTransferRequestQueued(ctx context.Context, id uuid.UUID, jobID uuid.UUID) error
}

// Config bounds one trigger invocation.
type Config struct {
	BatchLimit        int           // max jobs drained per tick
	ProcessBatchLimit int           // max manual rows scanned per processing call
	ProcessingTimeout time.Duration // stuck-job sweep threshold
}

// TickResult summarizes one trigger invocation for the caller.
type TickResult struct {
	Reset     int       `json:"reset"`
	Enqueued  int       `json:"enqueued"`
	Skipped   int       `json:"skipped"`
	Processed int       `json:"processed"`
	Timestamp time.Time `json:"timestamp"`
}

// Engine orchestrates due-time resolution, the queue and the runner.
type Engine struct {
	resolver  *schedule.Resolver
	queue     *queue.Queue
	runner    *runner.Runner
	transfers TransferStore
	cfg       Config
}

// New creates an Engine.
func New(resolver *schedule.Resolver, q *queue.Queue, r *runner.Runner, transfers TransferStore, cfg Config) *Engine {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 50
	}
	if cfg.ProcessBatchLimit <= 0 {
		cfg.ProcessBatchLimit = 10
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 15 * time.Minute
	}
	return &Engine{resolver: resolver, queue: q, runner: r, transfers: transfers, cfg: cfg}
}

// CronTick is one pass of the external trigger: sweep stuck jobs, enqueue
// everything due, then drain. A schedule whose previous job is still active
// is skipped, not failed; the cron tick firing while work is in flight is
// normal operation. Any error returned is an infrastructure failure and the
// external invoker retries on its own schedule.
func (e *Engine) CronTick(ctx context.Context, spaceID *uuid.UUID) (*TickResult, error) {
	result := &TickResult{Timestamp: time.Now().UTC()}

	reset, err := e.queue.ResetStuck(ctx, e.cfg.ProcessingTimeout)
	if err != nil {
		return nil, fmt.Errorf("cron tick: %w", err)
	}
	result.Reset = reset

	due, err := e.resolver.ResolveDue(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("cron tick: %w", err)
	}

	for _, item := range due {
		scheduleID := item.ScheduleID
		_, err := e.queue.Enqueue(ctx, queue.EnqueueRequest{
			SpaceID:          item.SpaceID,
			Type:             item.Domain,
			ResourceID:       item.ResourceID,
			SourceScheduleID: &scheduleID,
		})
		if errors.Is(err, queue.ErrDuplicateActiveJob) {
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cron tick: %w", err)
		}
		result.Enqueued++
	}

	processed, err := e.runner.ProcessPending(ctx, e.cfg.BatchLimit)
	result.Processed = processed
	if err != nil {
		return nil, fmt.Errorf("cron tick: %w", err)
	}

	slog.Info("cron tick complete",
		"reset", result.Reset, "enqueued", result.Enqueued,
		"skipped", result.Skipped, "processed", result.Processed)
	return result, nil
}

// ProcessManual scans pending one-off import/export requests in a bounded
// batch, enqueues a job per request bypassing the due-time resolver, and
// drains. Used for manual transfers rather than recurring schedules.
func (e *Engine) ProcessManual(ctx context.Context) (*TickResult, error) {
	result := &TickResult{Timestamp: time.Now().UTC()}

	reqs, err := e.transfers.ListPendingTransferRequests(ctx, e.cfg.ProcessBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("process manual: %w", err)
	}

	for _, req := range reqs {
		job, err := e.queue.Enqueue(ctx, queue.EnqueueRequest{
			SpaceID:    req.SpaceID,
			Type:       req.Kind,
			ResourceID: req.ResourceID,
		})
		if errors.Is(err, queue.ErrDuplicateActiveJob) {
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("process manual: %w", err)
		}
		if err := e.transfers.MarkTransferRequestQueued(ctx, req.ID, job.ID); err != nil {
			return nil, fmt.Errorf("process manual: %w", err)
		}
		result.Enqueued++
	}

	processed, err := e.runner.ProcessPending(ctx, e.cfg.ProcessBatchLimit)
	result.Processed = processed
	if err != nil {
		return nil, fmt.Errorf("process manual: %w", err)
	}

	return result, nil
}
