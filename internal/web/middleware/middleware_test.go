package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nkhelifi/radiogate/internal/config"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		proxies    []string
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{
			name:       "trusted proxy with X-Real-IP",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4567",
			realIP:     "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "trusted proxy with forwarded chain takes first hop",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4567",
			forwarded:  "203.0.113.9, 10.1.2.3",
			want:       "203.0.113.9",
		},
		{
			name:       "untrusted peer keeps its own address",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "192.0.2.50:9999",
			realIP:     "203.0.113.9",
			want:       "192.0.2.50:9999",
		},
		{
			name:       "no proxies configured keeps RemoteAddr",
			remoteAddr: "10.1.2.3:4567",
			realIP:     "203.0.113.9",
			want:       "10.1.2.3:4567",
		},
		{
			name:       "bare address proxy becomes single host",
			proxies:    []string{"127.0.0.1"},
			remoteAddr: "127.0.0.1:5000",
			realIP:     "198.51.100.7",
			want:       "198.51.100.7",
		},
		{
			name:       "garbage header value is rejected",
			proxies:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4567",
			realIP:     "not-an-address",
			want:       "10.1.2.3:4567",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := ClientIP(tt.proxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	tests := []struct {
		name       string
		cfg        config.SecurityConfig
		key        string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "auth disabled passes through",
			cfg:        config.SecurityConfig{RequireAPIKey: false},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing key rejected",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "AUTH_MISSING_KEY",
		},
		{
			name:       "wrong key rejected",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}},
			key:        "k2",
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTH_INVALID_KEY",
		},
		{
			name:       "second configured key accepted",
			cfg:        config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}},
			key:        "k2",
			wantStatus: http.StatusCreated,
		},
		{
			name:       "required but no keys configured rejects everything",
			cfg:        config.SecurityConfig{RequireAPIKey: true},
			key:        "anything",
			wantStatus: http.StatusForbidden,
			wantCode:   "AUTH_INVALID_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := APIKeyAuth(&tt.cfg)(next)

			req := httptest.NewRequest(http.MethodPost, "/api/ingest/pm", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantCode != "" && !strings.Contains(rr.Body.String(), tt.wantCode) {
				t.Errorf("body = %q, want code %q", rr.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestRequestLoggerCapturesStatus(t *testing.T) {
	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/entries/pm/0", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
