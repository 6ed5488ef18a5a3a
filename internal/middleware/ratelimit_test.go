package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter()

	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow("key", 5, time.Minute); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, retry := rl.Allow("key", 5, time.Minute)
	if ok {
		t.Error("6th request should be denied")
	}
	if retry != time.Minute {
		t.Errorf("retry = %v, want 1m", retry)
	}

	if ok, _ := rl.Allow("other", 5, time.Minute); !ok {
		t.Error("other keys have their own budget")
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow("key", 2, time.Minute)
	clock.advance(40 * time.Second)
	rl.Allow("key", 2, time.Minute)

	clock.advance(10 * time.Second)
	ok, retry := rl.Allow("key", 2, time.Minute)
	if ok {
		t.Fatal("should be blocked within window")
	}
	if retry != 10*time.Second {
		t.Errorf("retry = %v, want 10s until the first hit expires", retry)
	}

	clock.advance(10 * time.Second)
	if ok, _ := rl.Allow("key", 2, time.Minute); !ok {
		t.Error("should be allowed once the first hit leaves the window")
	}
	if ok, _ := rl.Allow("key", 2, time.Minute); ok {
		t.Error("second hit is still inside the window")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow("expired", 5, time.Minute)
	clock.advance(2 * time.Minute)
	rl.Allow("active", 5, time.Minute)

	rl.Cleanup(time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.hits["expired"]; ok {
		t.Error("expired entry should have been cleaned up")
	}
	if _, ok := rl.hits["active"]; !ok {
		t.Error("active entry should still exist")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter()
	mux := http.NewServeMux()
	limited := RateLimit(rl, ByIP, 2, time.Minute)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("POST /a", limited(ok))
	mux.Handle("POST /b", limited(ok))

	send := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("/a", "10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := send("/a", "10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	if rec := send("/b", "10.0.0.1:5002"); rec.Code != http.StatusOK {
		t.Errorf("other route: status = %d, want 200", rec.Code)
	}
	if rec := send("/a", "10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", rec.Code)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"cloudflare", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "2.2.2.2, 10.0.0.1"}, "3.3.3.3:1", "2.2.2.2"},
		{"garbage header", map[string]string{"X-Forwarded-For": "not-an-ip"}, "3.3.3.3:1", "3.3.3.3"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr", nil, "3.3.3.3:1234", "3.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := RealIP(req); got != tt.want {
				t.Errorf("RealIP = %q, want %q", got, tt.want)
			}
		})
	}
}
