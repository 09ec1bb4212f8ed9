package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nmehta6/jobforge/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Spaces ---

func (s *PostgresStore) GetDefaultSpace(ctx context.Context) (*models.Space, error) {
	var sp models.Space
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM spaces WHERE name = 'default' LIMIT 1`,
	).Scan(&sp.ID, &sp.Name, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default space: %w", err)
	}
	return &sp, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, space_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.SpaceID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, space_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.SpaceID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, spaceID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, space_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE space_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.SpaceID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, spaceID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND space_id = $2 AND deleted_at IS NULL`, id, spaceID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Schedules ---

const scheduleColumns = `id, space_id, domain, resource_id, interval_seconds, cron_expr,
	enabled, last_run_at, next_run_at, deleted_at, created_at, updated_at`

func scanSchedule(row pgx.Row) (*models.ScheduleDefinition, error) {
	var sd models.ScheduleDefinition
	err := row.Scan(&sd.ID, &sd.SpaceID, &sd.Domain, &sd.ResourceID, &sd.IntervalSeconds,
		&sd.CronExpr, &sd.Enabled, &sd.LastRunAt, &sd.NextRunAt, &sd.DeletedAt,
		&sd.CreatedAt, &sd.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sd, nil
}

func (s *PostgresStore) CreateSchedule(ctx context.Context, sched *models.ScheduleDefinition) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schedules (id, space_id, domain, resource_id, interval_seconds, cron_expr,
		   enabled, last_run_at, next_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sched.ID, sched.SpaceID, sched.Domain, sched.ResourceID, sched.IntervalSeconds,
		sched.CronExpr, sched.Enabled, sched.LastRunAt, sched.NextRunAt,
		sched.CreatedAt, sched.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id uuid.UUID) (*models.ScheduleDefinition, error) {
	sd, err := scanSchedule(s.pool.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return sd, nil
}

func (s *PostgresStore) ListEnabledSchedules(ctx context.Context, domain string) ([]*models.ScheduleDefinition, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE enabled AND deleted_at IS NULL`
	args := []any{}
	if domain != "" {
		query += ` AND domain = $1`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enabled schedules: %w", err)
	}
	defer rows.Close()

	var scheds []*models.ScheduleDefinition
	for rows.Next() {
		sd, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		scheds = append(scheds, sd)
	}
	return scheds, rows.Err()
}

// ListDueSchedules returns enabled, non-deleted schedules whose next_run_at
// has passed. A NULL next_run_at means the schedule has never run and is due
// immediately; such rows sort first so the oldest work runs first.
func (s *PostgresStore) ListDueSchedules(ctx context.Context, spaceID *uuid.UUID, now time.Time) ([]*models.ScheduleDefinition, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		 WHERE enabled AND deleted_at IS NULL AND (next_run_at IS NULL OR next_run_at <= $1)`
	args := []any{now}
	if spaceID != nil {
		query += ` AND space_id = $2`
		args = append(args, *spaceID)
	}
	query += ` ORDER BY next_run_at ASC NULLS FIRST`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var scheds []*models.ScheduleDefinition
	for rows.Next() {
		sd, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		scheds = append(scheds, sd)
	}
	return scheds, rows.Err()
}

func (s *PostgresStore) RecordScheduleRun(ctx context.Context, id uuid.UUID, ranAt time.Time, nextRunAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET last_run_at = $2, next_run_at = $3, updated_at = NOW() WHERE id = $1`,
		id, ranAt, nextRunAt)
	if err != nil {
		return fmt.Errorf("record schedule run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SoftDeleteSchedule(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE schedules SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, space_id, type, resource_id, source_schedule_id, status,
	progress, attempt, error_message, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.SpaceID, &j.Type, &j.ResourceID, &j.SourceScheduleID,
		&j.Status, &j.Progress, &j.Attempt, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a pending job. The partial unique index on
// (type, resource_id) over active statuses turns a duplicate enqueue into
// ErrDuplicateActiveJob.
func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, space_id, type, resource_id, source_schedule_id, status,
		   progress, attempt, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.SpaceID, job.Type, job.ResourceID, job.SourceScheduleID,
		job.Status, job.Progress, job.Attempt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateActiveJob
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJob is space-scoped: a job belonging to another space is ErrNotFound,
// same as a missing row.
func (s *PostgresStore) GetJob(ctx context.Context, id, spaceID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND space_id = $2`, id, spaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// DequeueNextJob atomically claims the oldest pending job and transitions it
// to processing. FOR UPDATE SKIP LOCKED makes concurrent callers claim
// distinct rows; the status guard in the subquery means a row can only be
// claimed out of pending. Returns ErrNotFound when the queue is empty.
func (s *PostgresStore) DequeueNextJob(ctx context.Context) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = 'processing', updated_at = NOW()
		 WHERE id = (
		   SELECT id FROM jobs WHERE status = 'pending'
		   ORDER BY created_at
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue next job: %w", err)
	}
	return j, nil
}

// CompleteJob transitions a processing job to completed. Returns false when
// the status guard does not match: an already-terminal job (calling twice is
// a no-op, not an error) and a still-pending job that was never dequeued are
// both left untouched. Only the runner calls this, and only on jobs it has
// claimed. Missing rows are ErrNotFound.
func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', progress = 100, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// The guard did not match; distinguish a missing row from a skipped one.
	if err := s.jobExists(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// FailJob transitions a processing job to failed. Same guard contract as
// CompleteJob.
func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, errMsg string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error_message = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id, errMsg)
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if err := s.jobExists(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) jobExists(ctx context.Context, id uuid.UUID) error {
	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM jobs WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id, progress)
	if err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

// ResetStuckJobs flips processing jobs that have not been touched since
// olderThan back to pending, so a crashed runner's work is picked up again.
func (s *PostgresStore) ResetStuckJobs(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'pending', updated_at = NOW()
		 WHERE status = 'processing' AND updated_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Transfer Requests ---

func (s *PostgresStore) CreateTransferRequest(ctx context.Context, req *models.TransferRequest) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transfer_requests (id, space_id, kind, resource_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, req.SpaceID, req.Kind, req.ResourceID, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPendingTransferRequests(ctx context.Context, limit int) ([]*models.TransferRequest, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, space_id, kind, resource_id, status, job_id, created_at, updated_at
		 FROM transfer_requests WHERE status = 'pending' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending transfer requests: %w", err)
	}
	defer rows.Close()

	var reqs []*models.TransferRequest
	for rows.Next() {
		var tr models.TransferRequest
		if err := rows.Scan(&tr.ID, &tr.SpaceID, &tr.Kind, &tr.ResourceID, &tr.Status,
			&tr.JobID, &tr.CreatedAt, &tr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer request: %w", err)
		}
		reqs = append(reqs, &tr)
	}
	return reqs, rows.Err()
}

func (s *PostgresStore) MarkTransferRequestQueued(ctx context.Context, id uuid.UUID, jobID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE transfer_requests SET status = 'queued', job_id = $2, updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id, jobID)
	if err != nil {
		return fmt.Errorf("mark transfer request queued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Execution Records ---

func (s *PostgresStore) CreateExecutionRecord(ctx context.Context, rec *models.ExecutionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO execution_records (id, job_id, schedule_id, space_id, status, started_at,
		   completed_at, duration_ms, records_fetched, records_inserted, records_updated,
		   records_failed, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.JobID, rec.ScheduleID, rec.SpaceID, rec.Status, rec.StartedAt,
		rec.CompletedAt, rec.DurationMs, rec.RecordsFetched, rec.RecordsInserted,
		rec.RecordsUpdated, rec.RecordsFailed, rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("create execution record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListExecutionRecords(ctx context.Context, filter ExecutionFilter) ([]*models.ExecutionRecord, error) {
	conditions := []string{"space_id = $1"}
	args := []any{filter.SpaceID}
	argIdx := 2

	if filter.ScheduleID != nil {
		conditions = append(conditions, fmt.Sprintf("schedule_id = $%d", argIdx))
		args = append(args, *filter.ScheduleID)
		argIdx++
	}
	if filter.JobID != nil {
		conditions = append(conditions, fmt.Sprintf("job_id = $%d", argIdx))
		args = append(args, *filter.JobID)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("started_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(
		`SELECT id, job_id, schedule_id, space_id, status, started_at, completed_at,
		   duration_ms, records_fetched, records_inserted, records_updated, records_failed, error_message
		 FROM execution_records WHERE %s ORDER BY started_at DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list execution records: %w", err)
	}
	defer rows.Close()

	var recs []*models.ExecutionRecord
	for rows.Next() {
		var r models.ExecutionRecord
		if err := rows.Scan(&r.ID, &r.JobID, &r.ScheduleID, &r.SpaceID, &r.Status,
			&r.StartedAt, &r.CompletedAt, &r.DurationMs, &r.RecordsFetched,
			&r.RecordsInserted, &r.RecordsUpdated, &r.RecordsFailed, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan execution record: %w", err)
		}
		recs = append(recs, &r)
	}
	return recs, rows.Err()
}

// CountConsecutiveFailures counts failed executions for a schedule since the
// last success. The history is append-only, so the count is stable under
// concurrent readers and safe across multiple engine instances.
func (s *PostgresStore) CountConsecutiveFailures(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM execution_records
		 WHERE schedule_id = $1 AND status = 'failed'
		   AND started_at > COALESCE(
		     (SELECT MAX(started_at) FROM execution_records
		      WHERE schedule_id = $1 AND status = 'success'),
		     '-infinity'::timestamptz)`, scheduleID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count consecutive failures: %w", err)
	}
	return count, nil
}

// --- Alerts ---

// UpsertOpenAlert creates an alert, or refreshes the message and timestamp of
// an existing unacknowledged alert for the same (schedule_id, alert_type).
// The partial unique index over unacknowledged alerts backs the ON CONFLICT.
func (s *PostgresStore) UpsertOpenAlert(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	var result models.Alert
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alerts (id, space_id, schedule_id, alert_type, severity, message,
		   acknowledged, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
		 ON CONFLICT (schedule_id, alert_type) WHERE NOT acknowledged DO UPDATE SET
		   message = EXCLUDED.message,
		   severity = EXCLUDED.severity,
		   updated_at = NOW()
		 RETURNING id, space_id, schedule_id, alert_type, severity, message,
		   acknowledged, acknowledged_at, created_at, updated_at`,
		alert.ID, alert.SpaceID, alert.ScheduleID, alert.AlertType, alert.Severity,
		alert.Message, alert.CreatedAt, alert.UpdatedAt,
	).Scan(&result.ID, &result.SpaceID, &result.ScheduleID, &result.AlertType,
		&result.Severity, &result.Message, &result.Acknowledged, &result.AcknowledgedAt,
		&result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert open alert: %w", err)
	}
	return &result, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error) {
	conditions := []string{"space_id = $1"}
	args := []any{filter.SpaceID}
	argIdx := 2

	if filter.ScheduleID != nil {
		conditions = append(conditions, fmt.Sprintf("schedule_id = $%d", argIdx))
		args = append(args, *filter.ScheduleID)
		argIdx++
	}
	if filter.Acknowledged != nil {
		conditions = append(conditions, fmt.Sprintf("acknowledged = $%d", argIdx))
		args = append(args, *filter.Acknowledged)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := fmt.Sprintf(
		`SELECT id, space_id, schedule_id, alert_type, severity, message,
		   acknowledged, acknowledged_at, created_at, updated_at
		 FROM alerts WHERE %s ORDER BY updated_at DESC LIMIT $%d`,
		strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.SpaceID, &a.ScheduleID, &a.AlertType, &a.Severity,
			&a.Message, &a.Acknowledged, &a.AcknowledgedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert is space-scoped: an alert belonging to another space is
// ErrNotFound, same as a missing row.
func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, id, spaceID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET acknowledged = TRUE, acknowledged_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND space_id = $2 AND NOT acknowledged`, id, spaceID)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Missing row and already-acknowledged row look the same here; only the
		// former is an error.
		var ack bool
		err := s.pool.QueryRow(ctx,
			`SELECT acknowledged FROM alerts WHERE id = $1 AND space_id = $2`, id, spaceID).Scan(&ack)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("acknowledge alert: %w", err)
		}
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
