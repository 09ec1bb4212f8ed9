package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/exec"
	"github.com/nmehta6/jobforge/internal/queue"
	"github.com/nmehta6/jobforge/internal/retry"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJobStore is the minimal in-memory job table the queue needs.
type fakeJobStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	jobs  map[uuid.UUID]*models.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*models.Job)}
}

func (f *fakeJobStore) CreateJob(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	f.order = append(f.order, job.ID)
	return nil
}

func (f *fakeJobStore) GetJob(_ context.Context, id, spaceID uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.SpaceID != spaceID {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobStore) DequeueNextJob(_ context.Context) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		job := f.jobs[id]
		if job.Status == models.JobStatusPending {
			job.Status = models.JobStatusProcessing
			cp := *job
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeJobStore) CompleteJob(_ context.Context, id uuid.UUID) (bool, error) {
	return f.finish(id, models.JobStatusCompleted, nil)
}

func (f *fakeJobStore) FailJob(_ context.Context, id uuid.UUID, errMsg string) (bool, error) {
	return f.finish(id, models.JobStatusFailed, &errMsg)
}

func (f *fakeJobStore) finish(id uuid.UUID, status string, errMsg *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if job.Status != models.JobStatusProcessing {
		return false, nil
	}
	job.Status = status
	job.ErrorMessage = errMsg
	return true, nil
}

func (f *fakeJobStore) SetJobProgress(_ context.Context, id uuid.UUID, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		job.Progress = progress
	}
	return nil
}

func (f *fakeJobStore) ResetStuckJobs(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

// stubExecutor fails with err for the first failUntil calls, then succeeds.
type stubExecutor struct {
	mu        sync.Mutex
	calls     int
	failUntil int
	err       error
	result    *exec.Result
	panicMsg  string
}

func (s *stubExecutor) Name() string { return "stub" }

func (s *stubExecutor) Execute(_ context.Context, _ *models.Job) (*exec.Result, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if n <= s.failUntil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &exec.Result{}, nil
}

func (s *stubExecutor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordSink struct {
	mu   sync.Mutex
	recs []*models.ExecutionRecord
}

func (r *recordSink) CreateExecutionRecord(_ context.Context, rec *models.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recordSink) all() []*models.ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.ExecutionRecord(nil), r.recs...)
}

type scheduleSink struct {
	mu    sync.Mutex
	runs  []uuid.UUID
	times []time.Time
}

func (s *scheduleSink) RecordRun(_ context.Context, scheduleID uuid.UUID, ranAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, scheduleID)
	s.times = append(s.times, ranAt)
	return nil
}

type alertSink struct {
	mu   sync.Mutex
	recs []*models.ExecutionRecord
}

func (a *alertSink) OnExecutionRecord(_ context.Context, rec *models.ExecutionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
	return nil
}

// fastPolicy keeps backoff delays out of test runtime.
func fastPolicy() *retry.Policy {
	p := retry.NewPolicy(retry.WithoutJitter())
	p.InitialDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

type harness struct {
	store     *fakeJobStore
	queue     *queue.Queue
	registry  *exec.Registry
	records   *recordSink
	schedules *scheduleSink
	alerts    *alertSink
	runner    *Runner
}

func newHarness(t *testing.T, ex exec.Executor, concurrency int) *harness {
	t.Helper()
	st := newFakeJobStore()
	q := queue.New(st, nil, 3)
	reg := exec.NewRegistry()
	if ex != nil {
		reg.Register(models.JobTypeDataSync, ex)
	}
	records := &recordSink{}
	schedules := &scheduleSink{}
	alerts := &alertSink{}
	return &harness{
		store:     st,
		queue:     q,
		registry:  reg,
		records:   records,
		schedules: schedules,
		alerts:    alerts,
		runner:    New(q, reg, fastPolicy(), schedules, records, alerts, concurrency),
	}
}

func (h *harness) enqueue(t *testing.T, scheduleID *uuid.UUID) *models.Job {
	t.Helper()
	job, err := h.queue.Enqueue(context.Background(), queue.EnqueueRequest{
		SpaceID:          uuid.New(),
		Type:             models.JobTypeDataSync,
		ResourceID:       uuid.New(),
		SourceScheduleID: scheduleID,
	})
	require.NoError(t, err)
	return job
}

func TestProcessPending_Success(t *testing.T) {
	ex := &stubExecutor{result: &exec.Result{RecordsFetched: 42, RecordsInserted: 40, RecordsFailed: 2}}
	h := newHarness(t, ex, 1)
	job := h.enqueue(t, nil)

	n, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, ex.callCount())

	got, err := h.queue.Get(context.Background(), job.ID, job.SpaceID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)

	recs := h.records.all()
	require.Len(t, recs, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, recs[0].Status)
	assert.Equal(t, job.ID, recs[0].JobID)
	assert.Equal(t, 42, recs[0].RecordsFetched)
	assert.Equal(t, 2, recs[0].RecordsFailed)
	assert.Nil(t, recs[0].ErrorMessage)

	// Alert manager sees every record, success included.
	assert.Len(t, h.alerts.recs, 1)
}

func TestProcessPending_TransientFailureRetriedThenFails(t *testing.T) {
	ex := &stubExecutor{
		failUntil: 100,
		err:       &exec.StatusError{Code: 503, Message: "upstream scheduled maintenance"},
	}
	h := newHarness(t, ex, 1)
	job := h.enqueue(t, nil)

	n, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Initial attempt plus the full retry budget of three.
	assert.Equal(t, 4, ex.callCount())

	got, err := h.queue.Get(context.Background(), job.ID, job.SpaceID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "503")

	recs := h.records.all()
	require.Len(t, recs, 1, "exactly one record per terminal outcome, not per attempt")
	assert.Equal(t, models.ExecutionStatusFailed, recs[0].Status)
}

func TestProcessPending_TransientFailureRecovers(t *testing.T) {
	ex := &stubExecutor{
		failUntil: 2,
		err:       &exec.StatusError{Code: 503},
	}
	h := newHarness(t, ex, 1)
	job := h.enqueue(t, nil)

	_, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, ex.callCount())

	got, err := h.queue.Get(context.Background(), job.ID, job.SpaceID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)

	recs := h.records.all()
	require.Len(t, recs, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, recs[0].Status)
}

func TestProcessPending_TerminalFailureNotRetried(t *testing.T) {
	ex := &stubExecutor{
		failUntil: 100,
		err:       &exec.StatusError{Code: 422, Message: "invalid resource configuration"},
	}
	h := newHarness(t, ex, 1)
	job := h.enqueue(t, nil)

	_, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, ex.callCount())

	got, err := h.queue.Get(context.Background(), job.ID, job.SpaceID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

func TestProcessPending_PanicIsolated(t *testing.T) {
	ex := &stubExecutor{panicMsg: "nil map write"}
	h := newHarness(t, ex, 1)
	job := h.enqueue(t, nil)

	n, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := h.queue.Get(context.Background(), job.ID, job.SpaceID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "panicked")
}

func TestProcessPending_UnknownJobTypeFailsTerminally(t *testing.T) {
	h := newHarness(t, nil, 1)
	job := h.enqueue(t, nil)

	_, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)

	got, err := h.queue.Get(context.Background(), job.ID, job.SpaceID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "no executor registered")
}

func TestProcessPending_AdvancesScheduleOnFailure(t *testing.T) {
	ex := &stubExecutor{
		failUntil: 100,
		err:       &exec.StatusError{Code: 400},
	}
	h := newHarness(t, ex, 1)
	scheduleID := uuid.New()
	h.enqueue(t, &scheduleID)

	_, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)

	// The schedule advances even though the run failed, so a broken resource
	// retries at its next scheduled time rather than on every tick.
	require.Len(t, h.schedules.runs, 1)
	assert.Equal(t, scheduleID, h.schedules.runs[0])
}

func TestProcessPending_HonorsLimit(t *testing.T) {
	ex := &stubExecutor{}
	h := newHarness(t, ex, 4)
	for i := 0; i < 5; i++ {
		h.enqueue(t, nil)
	}

	n, err := h.runner.ProcessPending(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Two jobs remain pending for the next tick.
	remaining := 0
	h.store.mu.Lock()
	for _, job := range h.store.jobs {
		if job.Status == models.JobStatusPending {
			remaining++
		}
	}
	h.store.mu.Unlock()
	assert.Equal(t, 2, remaining)
}

func TestProcessPending_EmptyQueue(t *testing.T) {
	h := newHarness(t, &stubExecutor{}, 2)

	n, err := h.runner.ProcessPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, h.records.all())
}

func TestTruncateString(t *testing.T) {
	long := strings.Repeat("x", 3000)
	assert.Len(t, truncateString(long, maxErrorMessageBytes), maxErrorMessageBytes)
	assert.Equal(t, "short", truncateString("short", maxErrorMessageBytes))

	// Never splits a multi-byte rune.
	s := "ééééé" // 2 bytes each
	got := truncateString(s, 5)
	assert.Equal(t, "éé", got)
}
