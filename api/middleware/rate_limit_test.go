package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type countingLimiter struct {
	counts map[string]int64
}

func newCountingLimiter() *countingLimiter {
	return &countingLimiter{counts: map[string]int64{}}
}

func (c *countingLimiter) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.counts[key]++
	return c.counts[key], nil
}

func (c *countingLimiter) RateLimitKey(scope string) string {
	return "cr:rate_limit:" + scope
}

func newLimitedHandler(policy RateLimitPolicy, store rateLimiterStore, calls *int) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
	})
	return RateLimit(policy, store, nil)(next)
}

func postCheckout(handler http.Handler, ip, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBlocksIPOverLimit(t *testing.T) {
	store := newCountingLimiter()
	calls := 0
	handler := newLimitedHandler(NewRateLimitPolicy("checkout", time.Minute, 2, 0), store, &calls)

	for i := 0; i < 2; i++ {
		if rec := postCheckout(handler, "203.0.113.9", `{}`); rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d, want 201", i, rec.Code)
		}
	}
	rec := postCheckout(handler, "203.0.113.9", `{}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestRateLimitCountsPerIP(t *testing.T) {
	store := newCountingLimiter()
	calls := 0
	handler := newLimitedHandler(NewRateLimitPolicy("checkout", time.Minute, 1, 0), store, &calls)

	if rec := postCheckout(handler, "203.0.113.9", `{}`); rec.Code != http.StatusCreated {
		t.Fatalf("first ip status = %d", rec.Code)
	}
	if rec := postCheckout(handler, "203.0.113.10", `{}`); rec.Code != http.StatusCreated {
		t.Fatalf("second ip status = %d", rec.Code)
	}
	if calls != 2 {
		t.Fatalf("handler ran %d times, want 2", calls)
	}
}

func TestRateLimitBlocksEmailAcrossIPs(t *testing.T) {
	store := newCountingLimiter()
	calls := 0
	handler := newLimitedHandler(NewRateLimitPolicy("checkout", time.Minute, 0, 1), store, &calls)

	body := `{"customer":{"email":"Marta@Example.com"}}`
	if rec := postCheckout(handler, "203.0.113.9", body); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	// same address, normalized, from a different IP
	rec := postCheckout(handler, "203.0.113.10", `{"customer":{"email":" marta@example.com "}}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	calls := 0
	handler := newLimitedHandler(NewRateLimitPolicy("checkout", 0, 5, 5), newCountingLimiter(), &calls)

	for i := 0; i < 10; i++ {
		if rec := postCheckout(handler, "203.0.113.9", `{}`); rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d status = %d", i, rec.Code)
		}
	}
	if calls != 10 {
		t.Fatalf("handler ran %d times, want 10", calls)
	}
}
