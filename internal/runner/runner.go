// Package runner drives job execution: it drains the queue with a bounded
// worker pool, dispatches each job to its domain executor, applies the retry
// policy, and writes the audit trail.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/exec"
	"github.com/nmehta6/jobforge/internal/queue"
	"github.com/nmehta6/jobforge/internal/retry"
	"github.com/nmehta6/jobforge/pkg/models"
)

const maxErrorMessageBytes = 2000

// RecordStore persists execution records.
type RecordStore interface {
	CreateExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error
}

// ScheduleRecorder advances a schedule's bookkeeping after a run.
type ScheduleRecorder interface {
	RecordRun(ctx context.Context, scheduleID uuid.UUID, ranAt time.Time) error
}

// AlertSink receives every written execution record.
type AlertSink interface {
	OnExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error
}

// Runner executes jobs pulled from the queue.
type Runner struct {
	queue       *queue.Queue
	executors   *exec.Registry
	policy      *retry.Policy
	schedules   ScheduleRecorder
	records     RecordStore
	alerts      AlertSink
	concurrency int
}

// New creates a Runner. concurrency bounds the worker pool per
// ProcessPending invocation; the default of 2 keeps pressure on external
// systems low.
func New(q *queue.Queue, executors *exec.Registry, policy *retry.Policy,
	schedules ScheduleRecorder, records RecordStore, alerts AlertSink, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Runner{
		queue:       q,
		executors:   executors,
		policy:      policy,
		schedules:   schedules,
		records:     records,
		alerts:      alerts,
		concurrency: concurrency,
	}
}

// ProcessPending drains up to limit pending jobs and returns the number
// processed. Returns immediately with 0 when the queue is empty; this is a
// polling model, workers never block waiting for new work. Job failures are
// absorbed into execution records; only infrastructure failures (queue or
// store unavailable) surface as the returned error.
func (r *Runner) ProcessPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}

	workers := r.concurrency
	if workers > limit {
		workers = limit
	}

	var (
		processed atomic.Int64
		claimed   atomic.Int64
		wg        sync.WaitGroup
		errOnce   sync.Once
		infraErr  error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				// Reserve a slot before claiming a job so the pool never
				// overshoots the limit.
				if claimed.Add(1) > int64(limit) {
					return
				}
				job, err := r.queue.Dequeue(ctx)
				if errors.Is(err, queue.ErrEmpty) {
					return
				}
				if err != nil {
					errOnce.Do(func() { infraErr = err })
					return
				}
				r.runJob(ctx, job)
				processed.Add(1)
			}
		}()
	}
	wg.Wait()

	return int(processed.Load()), infraErr
}

// runJob executes one claimed job through the retry loop to a terminal state.
// Retries happen in place: the job stays processing and no new queue entries
// are created. The job always ends completed or failed with exactly one
// execution record; nothing an executor does can crash the host process.
func (r *Runner) runJob(ctx context.Context, job *models.Job) {
	started := time.Now().UTC()

	var (
		result  *exec.Result
		lastErr error
	)

	executor, err := r.executors.Resolve(job.Type)
	if err != nil {
		lastErr = err
	} else {
		for attempt := 1; ; attempt++ {
			result, err = r.invoke(ctx, executor, job)
			if err == nil {
				lastErr = nil
				break
			}
			lastErr = err

			if !r.policy.ShouldRetry(err, attempt) {
				slog.Error("job failed",
					"job_id", job.ID, "type", job.Type, "attempt", attempt, "error", err)
				break
			}

			delay := r.policy.NextDelay(attempt)
			slog.Warn("job attempt failed, retrying",
				"job_id", job.ID, "type", job.Type, "attempt", attempt,
				"delay", delay, "error", err)
			if !sleepCtx(ctx, delay) {
				// Shutdown during backoff: give up on this job's retries and
				// record the last failure. The stuck-job sweep is not needed,
				// the terminal transition below still runs.
				break
			}
		}
	}

	completed := time.Now().UTC()
	rec := &models.ExecutionRecord{
		ID:          uuid.New(),
		JobID:       job.ID,
		ScheduleID:  job.SourceScheduleID,
		SpaceID:     job.SpaceID,
		StartedAt:   started,
		CompletedAt: completed,
		DurationMs:  completed.Sub(started).Milliseconds(),
	}

	if lastErr == nil {
		rec.Status = models.ExecutionStatusSuccess
		if result != nil {
			rec.RecordsFetched = result.RecordsFetched
			rec.RecordsInserted = result.RecordsInserted
			rec.RecordsUpdated = result.RecordsUpdated
			rec.RecordsFailed = result.RecordsFailed
		}
		if err := r.queue.Complete(ctx, job.ID, job.SpaceID); err != nil {
			slog.Error("complete transition failed", "job_id", job.ID, "error", err)
		}
	} else {
		rec.Status = models.ExecutionStatusFailed
		msg := truncateString(lastErr.Error(), maxErrorMessageBytes)
		rec.ErrorMessage = &msg
		if err := r.queue.Fail(ctx, job.ID, job.SpaceID, msg); err != nil {
			slog.Error("fail transition failed", "job_id", job.ID, "error", err)
		}
	}

	if err := r.records.CreateExecutionRecord(ctx, rec); err != nil {
		slog.Error("write execution record failed", "job_id", job.ID, "error", err)
	}

	// A failed run still advances the schedule: a permanently broken sync
	// tries again at the next scheduled time, not on every tick.
	if job.SourceScheduleID != nil {
		if err := r.schedules.RecordRun(ctx, *job.SourceScheduleID, completed); err != nil {
			slog.Error("record schedule run failed",
				"job_id", job.ID, "schedule_id", *job.SourceScheduleID, "error", err)
		}
	}

	if r.alerts != nil {
		if err := r.alerts.OnExecutionRecord(ctx, rec); err != nil {
			slog.Error("alert evaluation failed", "job_id", job.ID, "error", err)
		}
	}
}

// invoke calls the executor with panic isolation: a panicking executor is a
// failed attempt, not a crashed process.
func (r *Runner) invoke(ctx context.Context, executor exec.Executor, job *models.Job) (result *exec.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in executor", "executor", executor.Name(), "job_id", job.ID, "panic", rec)
			result = nil
			err = fmt.Errorf("executor %s panicked: %v", executor.Name(), rec)
		}
	}()
	return executor.Execute(ctx, job)
}

// sleepCtx sleeps for d unless ctx is cancelled first. Reports whether the
// full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
