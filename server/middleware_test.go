package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestConvertRateLimited(t *testing.T) {
	opts := DefaultOptions()
	opts.RateLimitRequests = 2
	opts.RateLimitWindow = 30 * time.Second
	h := newTestMuxWith(t, opts, loadedRates())

	do := func(forwardedFor string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/convert?q=1+usd+to+eur", nil)
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := do(""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
	rr := do("")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}

	// another client is unaffected
	if rr := do("198.51.100.7, 10.0.0.1"); rr.Code != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", rr.Code)
	}

	// health checks are never limited
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("healthz: expected 200, got %d", rr.Code)
		}
	}
}

func TestIPRateLimiterWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rl := newIPRateLimiter(ctx, &rateLimiterConfig{enabled: true, requestsPerIP: 2, window: time.Minute})
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.allow("a") {
		t.Fatal("third request inside the window should be rejected")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Error("request after the window should be allowed")
	}

	now = now.Add(5 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("visitors after cleanup = %d, want 0", n)
	}
}

func TestIPRateLimiterDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := newIPRateLimiter(ctx, &rateLimiterConfig{enabled: false, requestsPerIP: 1, window: time.Minute})
	for i := 0; i < 10; i++ {
		if !rl.allow("a") {
			t.Fatalf("request %d rejected with limiting disabled", i+1)
		}
	}
}

func TestOptionsLimiterSettings(t *testing.T) {
	cfg := Options{RateLimitEnabled: false, RateLimitRequests: -4}.limiterSettings()
	if cfg.enabled {
		t.Error("RateLimitEnabled=false should disable limiting")
	}
	if cfg.requestsPerIP != 30 || cfg.window != time.Minute {
		t.Errorf("non-positive values should keep defaults, got %d per %v", cfg.requestsPerIP, cfg.window)
	}

	cfg = Options{RateLimitEnabled: true, RateLimitRequests: 5, RateLimitWindow: 10 * time.Second}.limiterSettings()
	if !cfg.enabled || cfg.requestsPerIP != 5 || cfg.window != 10*time.Second {
		t.Errorf("limiterSettings() = %+v", *cfg)
	}
}

func TestConvertRateLimitDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.RateLimitEnabled = false
	opts.RateLimitRequests = 1
	h := newTestMuxWith(t, opts, loadedRates())

	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/convert?q=1+usd+to+eur", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		permissive bool
		allowed    []string
		origin     string
		wantOrigin string
	}{
		{"permissive allows any origin", true, nil, "http://anywhere.test", "*"},
		{"restricted allows listed origin", false, []string{"https://dash.example.com"}, "https://dash.example.com", "https://dash.example.com"},
		{"restricted allows wildcard subdomain", false, []string{"*.example.com"}, "https://ops.example.com", "https://ops.example.com"},
		{"restricted blocks others", false, []string{"https://dash.example.com"}, "https://evil.test", ""},
		{"restricted without origins blocks all", false, nil, "https://dash.example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.CORSPermissive = tt.permissive
			opts.CORSAllowedOrigins = tt.allowed
			h := newTestMuxWith(t, opts, loadedRates())

			req := httptest.NewRequest(http.MethodOptions, "/rates", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusNoContent {
				t.Errorf("preflight: expected 204, got %d", rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote    string
		forwarded string
		want      string
	}{
		{"192.0.2.1:1234", "", "192.0.2.1"},
		{"[2001:db8::1]:443", "", "2001:db8::1"},
		{"192.0.2.1:1234", "203.0.113.9", "203.0.113.9"},
		{"192.0.2.1:1234", "203.0.113.9, 10.0.0.1", "203.0.113.9"},
		{"192.0.2.1:1234", "2001:db8::2", "2001:db8::2"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q, %q) = %q, want %q", tt.remote, tt.forwarded, got, tt.want)
		}
	}
}
