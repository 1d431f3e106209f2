package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		shouldCallNext bool
	}{
		{name: "GET request with CORS headers", corsOrigin: "*", method: "GET", shouldCallNext: true},
		{name: "POST request with specific origin", corsOrigin: "https://example.com", method: "POST", shouldCallNext: true},
		{name: "OPTIONS request (preflight)", corsOrigin: "*", method: "OPTIONS", shouldCallNext: false},
		{name: "empty CORS origin", corsOrigin: "", method: "GET", shouldCallNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}
			called := false
			handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusAccepted)
			})

			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(tt.method, "/decode/image", nil))

			assert.Equal(t, tt.shouldCallNext, called)
			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			if tt.shouldCallNext {
				assert.Equal(t, http.StatusAccepted, w.Code)
			} else {
				assert.Equal(t, http.StatusOK, w.Code)
			}
		})
	}
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	next := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }

	t.Run("disabled", func(t *testing.T) {
		w := httptest.NewRecorder()
		(&Server{}).rateLimitMiddleware(next)(w, httptest.NewRequest(http.MethodPost, "/decode/image", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("minute limit", func(t *testing.T) {
		server := &Server{rateLimiter: NewRateLimiter(1, 0, 0, 0)}
		handler := server.rateLimitMiddleware(next)

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/decode/image", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/decode/image", nil))
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "minute", w.Header().Get("X-RateLimit-Type"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body["error"])

		// another client has its own bucket
		req := httptest.NewRequest(http.MethodPost, "/decode/image", nil)
		req.Header.Set("X-Real-IP", "10.0.0.9")
		w = httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("data quota", func(t *testing.T) {
		server := &Server{rateLimiter: NewRateLimiter(0, 0, 0, 100)}
		req := httptest.NewRequest(http.MethodPost, "/decode/image", nil)
		req.ContentLength = 200

		w := httptest.NewRecorder()
		server.rateLimitMiddleware(next)(w, req)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "data", w.Header().Get("X-Quota-Type"))
		assert.Equal(t, "100", w.Header().Get("X-Quota-Limit"))
		assert.Equal(t, "0", w.Header().Get("X-Quota-Used"))
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, want: "1.2.3.4"},
		{name: "forwarded single", headers: map[string]string{"X-Forwarded-For": " 1.2.3.4 "}, want: "1.2.3.4"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "5.6.7.8"}, want: "5.6.7.8"},
		{name: "remote addr", remoteAddr: "9.9.9.9:1234", want: "9.9.9.9"},
		{name: "remote addr without port", remoteAddr: "unix", want: "unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
