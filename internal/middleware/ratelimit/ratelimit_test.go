package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(l.Stop)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowSlidingWindow(t *testing.T) {
	l, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("198.51.100.1"); !ok {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		*now = now.Add(10 * time.Second)
	}
	// Attempts at 0s, 10s and 20s; it is now 30s.
	ok, wait := l.Allow("198.51.100.1")
	if ok {
		t.Fatal("fourth attempt inside the window should be refused")
	}
	if wait != 30*time.Second {
		t.Errorf("wait = %v, want 30s", wait)
	}
	if ok, _ := l.Allow("198.51.100.2"); !ok {
		t.Fatal("other clients are unaffected")
	}

	// At 60s the first attempt has left the window, the other two have not.
	*now = now.Add(30 * time.Second)
	if ok, _ := l.Allow("198.51.100.1"); !ok {
		t.Fatal("a slot should free up once the oldest attempt expires")
	}
	if ok, _ := l.Allow("198.51.100.1"); ok {
		t.Fatal("only one slot should have freed up")
	}
	if got := l.Rejected(); got != 2 {
		t.Errorf("rejected = %d, want 2", got)
	}
}

func TestRefusedAttemptsDoNotExtendWindow(t *testing.T) {
	l, now := newTestLimiter(t, 1)
	l.Allow("c")
	for i := 0; i < 5; i++ {
		*now = now.Add(10 * time.Second)
		l.Allow("c")
	}
	*now = now.Add(10 * time.Second)
	if ok, _ := l.Allow("c"); !ok {
		t.Fatal("refused attempts must not count against the client")
	}
}

func TestForgetIdle(t *testing.T) {
	l, now := newTestLimiter(t, 3)
	l.Allow("198.51.100.1")
	*now = now.Add(2 * time.Minute)
	l.Allow("198.51.100.2")
	l.forgetIdle()
	if got := l.ActiveClients(); got != 1 {
		t.Fatalf("active clients = %d, want 1", got)
	}
}

func TestMiddlewareSetsRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	called := 0
	h := l.Middleware(func(*http.Request) string { return "ip" }, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called++ }))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("status = %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
			}
		}
	}
	if called != 1 {
		t.Fatalf("handler called %d times, want 1", called)
	}
}

func TestMiddlewareDefaultResponse(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	h := l.Middleware(func(*http.Request) string { return "ip" }, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRetrySeconds(t *testing.T) {
	tests := map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for in, want := range tests {
		if got := retrySeconds(in); got != want {
			t.Errorf("retrySeconds(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestStopTwice(t *testing.T) {
	l := NewLimiter(DefaultConfig())
	l.Stop()
	l.Stop()
}
