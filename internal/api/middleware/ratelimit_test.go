package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestAllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, zerolog.Nop())
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("request over burst allowed")
	}
}

func TestLimitIsPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1, zerolog.Nop())
	defer rl.Stop()

	if !rl.Allow("10.0.0.1") {
		t.Fatalf("first client denied")
	}
	if rl.Allow("10.0.0.1") {
		t.Fatalf("first client got a second token")
	}
	// A different client has its own bucket.
	if !rl.Allow("10.0.0.2") {
		t.Fatalf("second client denied by first client's bucket")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(1, 1, zerolog.Nop())
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
