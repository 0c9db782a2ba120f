package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmgilman/go/fs/billy"
	"github.com/jmgilman/go/fs/core"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/taska/internal/config"
	"github.com/JonMunkholm/taska/internal/jobs"
	"github.com/JonMunkholm/taska/internal/notebook"
)

const testDate = "2023-10-27"

type fixture struct {
	srv   *Server
	fs    core.FS
	mgr   *jobs.Manager
	repo  *memRepo
	clock *clockwork.FakeClock
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Jobs:   config.JobsConfig{LogDir: "logs", FilePrefix: "app", Workers: 1},
		Cache:  config.CacheConfig{NotebookCapacity: 1},
	}
}

// newFixture builds a server over an in-memory log directory seeded with
// files and an in-memory notebook repository. Jobs run without a start delay.
func newFixture(t *testing.T, cfg *config.Config, files map[string]string) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	fsys := billy.NewMemory()
	require.NoError(t, fsys.MkdirAll(cfg.Jobs.LogDir, 0o755))
	for name, content := range files {
		require.NoError(t, fsys.WriteFile(name, []byte(content), 0o644))
	}

	clock := clockwork.NewFakeClock()
	store := jobs.NewStore()
	pool := jobs.NewPool(cfg.Jobs.Workers)
	worker := jobs.NewWorker(jobs.NewLogDir(fsys, cfg.Jobs.LogDir, cfg.Jobs.FilePrefix), store, clock, 0)
	mgr := jobs.NewManager(store, worker, pool)

	repo := newMemRepo()
	srv := NewServer(cfg, mgr, notebook.NewService(repo, cfg.Cache.NotebookCapacity), clock)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
		_ = srv.Shutdown(ctx)
	})

	return &fixture{srv: srv, fs: fsys, mgr: mgr, repo: repo, clock: clock}
}

func (f *fixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

// errorCode extracts the "code" field of a JSON error body.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, rec)["code"].(string)
}

func TestServer_Healthz(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestServer_SecurityHeaders(t *testing.T) {
	f := newFixture(t, nil, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
}

func TestServer_RequiresAPIKeyOnAPIRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	f := newFixture(t, cfg, nil)

	rec := f.do(t, http.MethodGet, "/api/logs/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/logs/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays open
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	f := newFixture(t, cfg, nil)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errorCode(t, rec))

	f.clock.Advance(rateWindow + time.Second)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
}
