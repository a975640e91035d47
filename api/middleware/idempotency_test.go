package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type memoryStore struct {
	values map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "cr:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRouteTTLMatchesGuardedEndpoints(t *testing.T) {
	cases := []struct {
		method  string
		pattern string
		want    time.Duration
		guarded bool
	}{
		{http.MethodPost, "/api/v1/checkout", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/rentals", defaultIdempotencyTTL, true},
		// chi reports subrouter roots with a trailing slash
		{http.MethodPost, "/api/v1/admin/rentals/", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/rentals/{rentalId}/end", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/rentals/{rentalId}/reopen", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/rentals/{rentalId}/payments", criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/admin/rentals/{rentalId}/payments/", criticalIdempotencyTTL, true},
		{http.MethodGet, "/api/v1/admin/rentals", 0, false},
		{http.MethodPost, "/api/v1/admin/orders", 0, false},
		{http.MethodPost, "", 0, false},
	}

	for _, tc := range cases {
		ttl, ok := routeTTL(tc.method, tc.pattern)
		if ok != tc.guarded {
			t.Fatalf("%s %s guarded = %v, want %v", tc.method, tc.pattern, ok, tc.guarded)
		}
		if ttl != tc.want {
			t.Fatalf("%s %s ttl = %v, want %v", tc.method, tc.pattern, ttl, tc.want)
		}
	}
}

func newIdempotentRouter(store *memoryStore, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Use(Idempotency(store, nil))
	r.Post("/api/v1/checkout", func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order":"o-1"}`))
	})
	r.Get("/api/v1/ping", func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := newIdempotentRouter(store, &calls)

	body := `{"customer":{"email":"marta@example.com"}}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d, want 201", i, rec.Code)
		}
		if got := rec.Body.String(); got != `{"order":"o-1"}` {
			t.Fatalf("attempt %d body = %q", i, got)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("attempt %d content type = %q", i, ct)
		}
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := newIdempotentRouter(store, &calls)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"a":1}`))
	first.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"a":2}`))
	second.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, second)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoute(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := newIdempotentRouter(store, &calls)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("handler ran %d times, want 0", calls)
	}
}

func TestIdempotencyIgnoresUnguardedRoutes(t *testing.T) {
	store := newMemoryStore()
	calls := 0
	router := newIdempotentRouter(store, &calls)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if len(store.values) != 0 {
		t.Fatalf("store has %d entries, want 0", len(store.values))
	}
}
