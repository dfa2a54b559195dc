package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rxguard/prescription-api/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRealIPMiddleware(t *testing.T) {
	var seenAddr string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAddr = r.RemoteAddr
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rr := httptest.NewRecorder()
	RealIPMiddleware(inner).ServeHTTP(rr, req)

	if seenAddr != "203.0.113.7" {
		t.Errorf("expected first forwarded IP, got %q", seenAddr)
	}
}

func TestBlockDirectAccessMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		wantCode   int
	}{
		{"localhost allowed", "127.0.0.1:54321", "", http.StatusOK},
		{"ipv6 localhost allowed", "[::1]:54321", "", http.StatusOK},
		{"proxied request allowed", "10.0.0.5:80", "203.0.113.7", http.StatusOK},
		{"direct access blocked", "203.0.113.7:1234", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			rr := httptest.NewRecorder()
			BlockDirectAccessMiddleware(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, rr.Code)
			}
		})
	}
}

func TestRequestSizeMiddlewareRejectsLargeBody(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 100, MaxHeaderSize: 8192}
	mw := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(strings.Repeat("x", 200)))
	req.Header.Set("Content-Length", "200")
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}
}

func TestRequestSizeMiddlewareRejectsLargeHeaders(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 1048576, MaxHeaderSize: 64}
	mw := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Big-Header", strings.Repeat("a", 200))
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestHeaderFieldsTooLarge {
		t.Errorf("expected 431, got %d", rr.Code)
	}
}

func TestRequestSizeMiddlewarePassesNormalRequests(t *testing.T) {
	cfg := &config.Config{MaxRequestBody: 1048576, MaxHeaderSize: 1048576}
	mw := RequestSizeMiddleware(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(`{"age": 30}`))
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}
}

func TestGetTokenCost(t *testing.T) {
	tests := []struct {
		path string
		want int64
	}{
		{"/", 0},
		{"/docs", 0},
		{"/favicon.ico", 0},
		{"/database", 200},
		{"/database/3", 20},
		{"/health", 5},
		{"/metrics", 5},
		{"/analyze", 100},
		{"/alternatives/ibuprofen", 100},
		{"/dosages", 50},
		{"/interactions", 50},
		{"/severity", 50},
		{"/unknown", 20},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := getTokenCost(req); got != tt.want {
			t.Errorf("%s: expected cost %d, got %d", tt.path, tt.want, got)
		}
	}
}

func TestRateLimitHandlerExhaustsBucket(t *testing.T) {
	mw := RateLimitHandler(okHandler())

	// The full dataset endpoint costs 200 tokens; a fresh bucket holds 1000.
	var lastCode int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/database", nil)
		req.RemoteAddr = "198.51.100.42:1000"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		lastCode = rr.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 after exhausting the bucket, got %d", lastCode)
	}
}

func TestRateLimitHandlerSetsHeaders(t *testing.T) {
	mw := RateLimitHandler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.43:1000"
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "1000" {
		t.Errorf("missing X-RateLimit-Limit header")
	}
	if rr.Header().Get("X-RateLimit-Remaining") == "" {
		t.Errorf("missing X-RateLimit-Remaining header")
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	mw := RateLimitHandler(okHandler())

	// Exhaust one client
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/database", nil)
		req.RemoteAddr = "198.51.100.44:1000"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
	}

	// A different client is unaffected
	req := httptest.NewRequest(http.MethodGet, "/database", nil)
	req.RemoteAddr = "198.51.100.45:1000"
	rr := httptest.NewRecorder()
	mw.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected fresh client to pass, got %d", rr.Code)
	}
}
