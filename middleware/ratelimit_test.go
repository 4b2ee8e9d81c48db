package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitSetsHeadersAndRejects(t *testing.T) {
	svc, _, done := newGuardTest(t)
	defer done()

	handler := RateLimit(svc, "login", time.Minute, 2, ClientIPKey)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	for i, wantRemaining := range []string{"1", "0"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("call %d status = %d, want 200", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("call %d limit header = %q", i, got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Fatalf("call %d remaining header = %q, want %q", i, got, wantRemaining)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("retry-after = %q, want 60", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Fatalf("remaining header on rejection = %q, want 0", got)
	}
}

func TestRateLimitKeysByClient(t *testing.T) {
	svc, _, done := newGuardTest(t)
	defer done()

	handler := RateLimit(svc, "login", time.Minute, 1, ClientIPKey)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	first := httptest.NewRequest(http.MethodPost, "/login", nil)
	first.RemoteAddr = "1.2.3.4:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client status = %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/login", nil)
	second.RemoteAddr = "5.6.7.8:1000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client status = %d", rec.Code)
	}

	repeat := httptest.NewRequest(http.MethodPost, "/login", nil)
	repeat.RemoteAddr = "1.2.3.4:2000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, repeat)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("repeat client status = %d, want 429", rec.Code)
	}
}

func TestRateLimitFailsClosedOnBackendOutage(t *testing.T) {
	svc, mr, done := newGuardTest(t)
	defer done()
	mr.Close()

	handler := RateLimit(svc, "login", time.Minute, 5, ClientIPKey)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "1.2.3.4:1000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestClientIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.8.7.6:1234"
	if got := ClientIPKey(req); got != "9.8.7.6" {
		t.Fatalf("key = %q, want 9.8.7.6", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := ClientIPKey(req); got != "203.0.113.9" {
		t.Fatalf("key = %q, want forwarded address", got)
	}
}
