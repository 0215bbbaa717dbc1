package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *mapStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestIdempotency_ReplaysFirstSuccess(t *testing.T) {
	store := &mapStore{data: map[string]string{}}
	calls := 0
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	}))

	send := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", key)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("/v1/h/demo/r/204/requests", "k1")
	second := send("/v1/h/demo/r/204/requests", "k1")
	otherPath := send("/v1/h/demo/r/205/requests", "k1")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"id":1}`, second.Body.String())
	assert.Empty(t, otherPath.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)
}

func TestScopedIdempotency_SeparatesOwners(t *testing.T) {
	store := &mapStore{data: map[string]string{}}
	calls := 0
	h := ScopedIdempotency(store, time.Hour, func(r *http.Request) string {
		return r.Header.Get("X-Owner")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(r.Header.Get("X-Owner")))
	}))

	send := func(owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/h/demo/r/204/requests", nil)
		req.Header.Set("Idempotency-Key", "1")
		if owner != "" {
			req.Header.Set("X-Owner", owner)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	alice := send("alice")
	bob := send("bob")
	aliceAgain := send("alice")
	anon1, anon2 := send(""), send("")

	assert.Equal(t, "alice", alice.Body.String())
	assert.Equal(t, "bob", bob.Body.String())
	assert.Empty(t, bob.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "true", aliceAgain.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "alice", aliceAgain.Body.String())
	assert.Empty(t, anon1.Header().Get("Idempotent-Replayed"))
	assert.Empty(t, anon2.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 4, calls)
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := &mapStore{data: map[string]string{}}
	calls := 0
	h := Idempotency(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set("Idempotency-Key", "same")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, 2, calls)
}

func TestHealthAndMetrics(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Health(Metrics(next))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
