package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/queue"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobService struct {
	jobs       map[uuid.UUID]*models.Job
	requeueErr error
	requeued   *models.Job
}

func (s *stubJobService) Get(_ context.Context, id, spaceID uuid.UUID) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok || job.SpaceID != spaceID {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (s *stubJobService) Requeue(_ context.Context, id, spaceID uuid.UUID) (*models.Job, error) {
	if s.requeueErr != nil {
		return nil, s.requeueErr
	}
	if job, ok := s.jobs[id]; ok && job.SpaceID != spaceID {
		return nil, store.ErrNotFound
	}
	return s.requeued, nil
}

// stubMirror records the space it was asked about, so tests can assert the
// lookup is keyed by the caller's space.
type stubMirror struct {
	status       string
	ok           bool
	err          error
	askedSpaceID uuid.UUID
}

func (s *stubMirror) GetJobStatus(_ context.Context, spaceID, _ uuid.UUID) (string, bool, error) {
	s.askedSpaceID = spaceID
	return s.status, s.ok, s.err
}

func jobRouter(jobs JobService, mirror StatusMirror) http.Handler {
	r := chi.NewRouter()
	r.Get("/jobs/{jobID}", NewGetJobHandler(jobs))
	r.Get("/jobs/{jobID}/status", NewJobStatusHandler(jobs, mirror))
	r.Post("/jobs/{jobID}/retry", NewRetryJobHandler(jobs))
	return r
}

func sampleJob() *models.Job {
	return &models.Job{
		ID:         uuid.New(),
		SpaceID:    uuid.New(),
		Type:       models.JobTypeDataSync,
		ResourceID: uuid.New(),
		Status:     models.JobStatusFailed,
		Attempt:    1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestGetJobHandler(t *testing.T) {
	job := sampleJob()
	svc := &stubJobService{jobs: map[uuid.UUID]*models.Job{job.ID: job}}
	r := jobRouter(svc, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/"+job.ID.String(), job.SpaceID))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, job.ID.String(), data["id"])
	assert.Equal(t, models.JobStatusFailed, data["status"])
}

func TestGetJobHandler_NotFound(t *testing.T) {
	r := jobRouter(&stubJobService{jobs: map[uuid.UUID]*models.Job{}}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/"+uuid.NewString(), uuid.New()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestGetJobHandler_CrossSpaceHidden(t *testing.T) {
	// A key from one space must not see another space's job.
	job := sampleJob()
	svc := &stubJobService{jobs: map[uuid.UUID]*models.Job{job.ID: job}}
	r := jobRouter(svc, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/"+job.ID.String(), uuid.New()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestGetJobHandler_BadID(t *testing.T) {
	r := jobRouter(&stubJobService{}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/nonsense", uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJobHandler_MissingSpace(t *testing.T) {
	job := sampleJob()
	r := jobRouter(&stubJobService{jobs: map[uuid.UUID]*models.Job{job.ID: job}}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String(), nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJobStatusHandler_ServedFromMirror(t *testing.T) {
	// The mirror answers; the store must not even be consulted.
	spaceID := uuid.New()
	mirror := &stubMirror{status: models.JobStatusProcessing, ok: true}
	r := jobRouter(&stubJobService{jobs: map[uuid.UUID]*models.Job{}}, mirror)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/"+uuid.NewString()+"/status", spaceID))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, models.JobStatusProcessing, data["status"])
	assert.Equal(t, spaceID, mirror.askedSpaceID, "mirror lookup keyed by the caller's space")
}

func TestJobStatusHandler_FallsBackToStore(t *testing.T) {
	job := sampleJob()
	job.Status = models.JobStatusCompleted
	svc := &stubJobService{jobs: map[uuid.UUID]*models.Job{job.ID: job}}
	r := jobRouter(svc, &stubMirror{ok: false})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/status", job.SpaceID))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, models.JobStatusCompleted, data["status"])
}

func TestJobStatusHandler_CrossSpaceHidden(t *testing.T) {
	// A mirror miss for the wrong space falls through to the scoped store
	// lookup, which hides the foreign job.
	job := sampleJob()
	svc := &stubJobService{jobs: map[uuid.UUID]*models.Job{job.ID: job}}
	r := jobRouter(svc, &stubMirror{ok: false})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/status", uuid.New()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRetryJobHandler(t *testing.T) {
	replacement := sampleJob()
	replacement.Status = models.JobStatusPending
	replacement.Attempt = 2
	r := jobRouter(&stubJobService{requeued: replacement}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPost, "/jobs/"+uuid.NewString()+"/retry", uuid.New()))

	assert.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(2), data["attempt"])
	assert.Equal(t, models.JobStatusPending, data["status"])
}

func TestRetryJobHandler_CrossSpaceHidden(t *testing.T) {
	job := sampleJob()
	r := jobRouter(&stubJobService{jobs: map[uuid.UUID]*models.Job{job.ID: job}}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authedRequest(http.MethodPost, "/jobs/"+job.ID.String()+"/retry", uuid.New()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeErrorCode(t, rec))
}

func TestRetryJobHandler_Errors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"duplicate active", queue.ErrDuplicateActiveJob, http.StatusConflict, "DUPLICATE_ACTIVE_JOB"},
		{"ceiling reached", queue.ErrAttemptsExhausted, http.StatusUnprocessableEntity, "ATTEMPTS_EXHAUSTED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := jobRouter(&stubJobService{requeueErr: tc.err}, nil)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, authedRequest(http.MethodPost, "/jobs/"+uuid.NewString()+"/retry", uuid.New()))

			require.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantCode, decodeErrorCode(t, rec))
		})
	}
}
