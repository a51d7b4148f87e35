package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/entityfs/internal/infrastructure/config"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/logging"
)

func newTestServer(t *testing.T) (*Server, afero.Fs) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Root = "/srv/storage"
	cfg.Mount.Snapshot = false

	fsys := afero.NewMemMapFs()
	s, err := NewServer(cfg, fsys, WithLogger(logging.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, fsys
}

func TestNewServerCreatesStorageRoot(t *testing.T) {
	_, fsys := newTestServer(t)

	ok, err := afero.DirExists(fsys, "/srv/storage")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Persist.ChunkSize = 0

	_, err := NewServer(cfg, afero.NewMemMapFs(), WithLogger(logging.NewNop()))
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	s, fsys := newTestServer(t)
	require.NoError(t, afero.WriteFile(fsys, "/srv/storage/docs/a.txt", []byte("alpha"), 0o644))

	// The tree request is recorded before /metrics is scraped.
	for _, path := range []string{"/health", "/api/tree?path=docs", "/metrics"} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)

		if path == "/metrics" {
			assert.Contains(t, w.Body.String(), "entityfs_trees_built_total")
			assert.Contains(t, w.Body.String(), "go_goroutines")
		}
	}
}

func TestShutdownBeforeRun(t *testing.T) {
	s, _ := newTestServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestResponsesCarryTraceID(t *testing.T) {
	s, _ := newTestServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}

func TestGlobalRateLimitSharesBudget(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Root = "/srv/storage"
	cfg.Mount.Snapshot = false
	cfg.RateLimit.Global = true
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1

	s, err := NewServer(cfg, afero.NewMemMapFs(), WithLogger(logging.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	codes := make([]int, 0, 2)
	for _, remote := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
