package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/taska/internal/config"
	"github.com/JonMunkholm/taska/internal/logging"
)

func echoRemoteAddr() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	handler := TrustedRealIP([]string{"10.0.0.0/8", "127.0.0.1", "not-a-cidr"})(echoRemoteAddr())

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "trusted proxy forwards first hop",
			remote:  "10.1.2.3:5555",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.1.2.3"},
			want:    "203.0.113.7",
		},
		{
			name:    "X-Real-IP wins over X-Forwarded-For",
			remote:  "127.0.0.1:80",
			headers: map[string]string{"X-Real-IP": "198.51.100.9", "X-Forwarded-For": "203.0.113.7"},
			want:    "198.51.100.9",
		},
		{
			name:    "untrusted client keeps connection address",
			remote:  "198.51.100.1:1234",
			headers: map[string]string{"X-Real-IP": "203.0.113.7"},
			want:    "198.51.100.1:1234",
		},
		{
			name:    "garbage header ignored",
			remote:  "10.0.0.1:4000",
			headers: map[string]string{"X-Real-IP": "definitely not an ip"},
			want:    "10.0.0.1:4000",
		},
		{
			name:   "no headers",
			remote: "10.0.0.1:4000",
			want:   "10.0.0.1:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disabled passes everything", func(t *testing.T) {
		h := APIKeyAuth(config.SecurityConfig{})(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/logs/stats", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	cfg := config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"alpha", "beta"}}
	h := APIKeyAuth(cfg)(ok)

	tests := []struct {
		name     string
		key      string
		wantCode int
		wantErr  string
	}{
		{"missing key", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong key", "gamma", http.StatusForbidden, "FORBIDDEN"},
		{"first key", "alpha", http.StatusOK, ""},
		{"second key", "beta", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/logs/stats", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr == "" {
				return
			}
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantErr, body["code"])
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(logging.New(&buf, "info", "json"))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/logs/stats", nil)
	req.RemoteAddr = "203.0.113.7"
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "/api/logs/stats", entry["path"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, len("short and stout"), entry["bytes"])
	assert.Equal(t, "203.0.113.7", entry["ip"])
}
