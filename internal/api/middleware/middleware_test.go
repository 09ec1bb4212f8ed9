package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nmehta6/jobforge/internal/cache"
	"github.com/nmehta6/jobforge/internal/store"
	"github.com/nmehta6/jobforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockKeyStore overrides only the store methods auth touches; calling anything
// else panics on the embedded nil interface, which is what we want.
type mockKeyStore struct {
	store.Store
	keys      []*models.APIKey
	lastUsed  chan uuid.UUID
	lookupErr error
}

func (m *mockKeyStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	var out []*models.APIKey
	for _, k := range m.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *mockKeyStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	if m.lastUsed != nil {
		m.lastUsed <- id
	}
	return nil
}

func newTestKey(t *testing.T, rawKey string, scopes []string) *models.APIKey {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.APIKey{
		ID:        uuid.New(),
		SpaceID:   uuid.New(),
		Name:      "test key",
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:keyPrefixLen],
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
	}
}

func TestAuthenticate_ValidKey(t *testing.T) {
	const rawKey = "jf_0123456789abcdef"
	key := newTestKey(t, rawKey, []string{"jobs:read"})
	st := &mockKeyStore{keys: []*models.APIKey{key}, lastUsed: make(chan uuid.UUID, 1)}
	auth := NewAuth(st)

	var gotSpace uuid.UUID
	var gotOK bool
	h := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSpace, gotOK = GetSpaceID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, gotOK)
	assert.Equal(t, key.SpaceID, gotSpace)

	select {
	case id := <-st.lastUsed:
		assert.Equal(t, key.ID, id)
	case <-time.After(time.Second):
		t.Fatal("last_used_at update never happened")
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	key := newTestKey(t, "jf_0123456789abcdef", nil)
	auth := NewAuth(&mockKeyStore{keys: []*models.APIKey{key}})
	h := auth.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"too short", "Bearer jf_01"},
		{"unknown prefix", "Bearer zz_0123456789abcdef"},
		{"wrong key same prefix", "Bearer jf_01234ZZZZZZZZZZZ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuthenticate_StoreError(t *testing.T) {
	auth := NewAuth(&mockKeyStore{lookupErr: assert.AnError})
	h := auth.Authenticate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer jf_0123456789abcdef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireScope(t *testing.T) {
	auth := NewAuth(&mockKeyStore{})
	var called bool
	h := auth.RequireScope("admin")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(setScopes(req.Context(), []string{"jobs:read", "admin"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	called = false
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(setScopes(req.Context(), []string{"jobs:read"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
}

// fakeLimitCache counts increments in memory.
type fakeLimitCache struct {
	counts map[string]int64
	err    error
}

func (f *fakeLimitCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (f *fakeLimitCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (f *fakeLimitCache) Delete(context.Context, string) error                     { return nil }
func (f *fakeLimitCache) Ping(context.Context) error                               { return nil }
func (f *fakeLimitCache) SetJobStatus(context.Context, uuid.UUID, uuid.UUID, string, time.Duration) error {
	return nil
}
func (f *fakeLimitCache) GetJobStatus(context.Context, uuid.UUID, uuid.UUID) (string, bool, error) {
	return "", false, nil
}

func (f *fakeLimitCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

var _ cache.Cache = (*fakeLimitCache)(nil)

func TestRateLimit(t *testing.T) {
	rl := NewRateLimit(&fakeLimitCache{}, 2)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(setKeyPrefix(req.Context(), "jf_01234"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimit_FailOpen(t *testing.T) {
	rl := NewRateLimit(&fakeLimitCache{err: assert.AnError}, 1)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(setKeyPrefix(req.Context(), "jf_01234"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_NoPrefixPassesThrough(t *testing.T) {
	rl := NewRateLimit(&fakeLimitCache{}, 1)
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
