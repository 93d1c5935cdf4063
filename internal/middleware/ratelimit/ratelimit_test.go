package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
	rl := NewLimiter(cfg)
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestLimiterAllow(t *testing.T) {
	rl, clock := newTestLimiter(t, Config{RequestsPerMinute: 3})

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request within the window should be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other clients have their own budget")
	}

	clock.Advance(time.Minute)
	if !rl.Allow("10.0.0.1") {
		t.Error("a new window should reset the budget")
	}

	if m := rl.GetMetrics(); m.TotalHits != 1 || m.ClientCount != 2 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestLimiterSteadyTrafficDoesNotExtendWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, Config{RequestsPerMinute: 2})

	rl.Allow("ip")
	clock.Advance(30 * time.Second)
	rl.Allow("ip")
	clock.Advance(20 * time.Second)
	if rl.Allow("ip") {
		t.Error("third request in the first minute should be rejected")
	}
	if got := rl.RetryAfter("ip"); got != 10*time.Second {
		t.Errorf("RetryAfter() = %v, want 10s", got)
	}
	clock.Advance(10 * time.Second)
	if !rl.Allow("ip") {
		t.Error("window started at the first request should have elapsed")
	}
}

func TestLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, DefaultConfig())
	rl.Allow("a")
	clock.Advance(5 * time.Minute)
	rl.Allow("b")
	clock.Advance(6 * time.Minute)

	if n := rl.cleanupStaleEntries(); n != 1 {
		t.Errorf("cleanupStaleEntries() = %d, want 1", n)
	}
	if rl.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d, want 1", rl.ActiveClients())
	}
}

func TestLimiterMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}})
	extract := func(*http.Request) string { return "192.0.2.7" }
	handler := rl.Middleware(extract, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		method string
		want   int
	}{
		{"first post", http.MethodPost, http.StatusNoContent},
		{"second post", http.MethodPost, http.StatusTooManyRequests},
		{"get is not limited", http.MethodGet, http.StatusNoContent},
		{"get again", http.MethodGet, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(tt.method, "/sheets/append", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestLimiterMiddlewareCustomRejection(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{RequestsPerMinute: 1})
	called := false
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}
	handler := rl.Middleware(func(*http.Request) string { return "x" }, onLimit)(http.NotFoundHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called || rec.Code != http.StatusTeapot {
		t.Errorf("custom rejection not used: called=%v status=%d", called, rec.Code)
	}
}
