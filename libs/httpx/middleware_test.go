package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(), mark("a"), mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestWithFormat(t *testing.T) {
	h := WithFormat("json")(okHandler())

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/calendar-events?_format=xml", nil))
	if rw.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/calendar-events?_format=JSON", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/calendar-events", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200 without _format, got %d", rw.Code)
	}
}

func TestWithRequestIDPropagates(t *testing.T) {
	var seen string
	h := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if seen != "req-123" || rw.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("request id not propagated: ctx=%q header=%q", seen, rw.Header().Get(RequestIDHeader))
	}

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || seen == "req-123" {
		t.Fatalf("expected generated request id, got %q", seen)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return base }
	h := rl.Middleware()(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rw := httptest.NewRecorder()
		h.ServeHTTP(rw, req)
		codes = append(codes, rw.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes: %v", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.1")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, other)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected separate bucket per client, got %d", rw.Code)
	}
}

func TestRateLimiterKeepsActiveVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") {
		t.Fatal("first request should pass")
	}
	if rl.allow("a") {
		t.Fatal("second request within the same second should be limited")
	}
	if len(rl.visitors) != 1 {
		t.Fatalf("expected the new visitor to be tracked, got %d", len(rl.visitors))
	}

	now = now.Add(rl.idleTTL + time.Minute)
	if !rl.allow("b") {
		t.Fatal("new client should pass")
	}
	if _, ok := rl.visitors["a"]; ok {
		t.Fatal("idle visitor should be evicted")
	}
	if _, ok := rl.visitors["b"]; !ok {
		t.Fatal("new visitor should survive eviction")
	}
}

func TestWithRecover(t *testing.T) {
	h := WithRecover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	if rw.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rw.Code)
	}
}
