package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lap-market/marketplace-backend/api"
	"github.com/lap-market/marketplace-backend/api/files"
	"github.com/lap-market/marketplace-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, pprof bool) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	local, err := storage.NewFileBackend(filepath.Join(t.TempDir(), "uploads"), logger)
	require.NoError(t, err)
	facade := storage.NewFacade(context.Background(), nil, local, nil, logger)

	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		EnablePprof:              pprof,
		Log:                      logger,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, files.NewHandler(facade, api.UploadLimits{}, logger), nil)
	require.NoError(t, err)
	return srv
}

func TestNew_RequiresFileHandler(t *testing.T) {
	_, err := New(&api.HTTPServerConfig{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}, nil, nil)
	assert.Error(t, err)
}

func TestServer_DrainCycle(t *testing.T) {
	srv := newTestServer(t, false)
	router := srv.getRouter()

	steps := []struct {
		path         string
		expectStatus int
		expectBody   string
	}{
		{"/livez", http.StatusOK, `{"status":"alive"}`},
		{"/readyz", http.StatusOK, `{"status":"ready"}`},
		{"/drain", http.StatusOK, `{"status":"draining"}`},
		{"/drain", http.StatusOK, `{"status":"already draining"}`},
		{"/readyz", http.StatusServiceUnavailable, `{"status":"not ready"}`},
		{"/livez", http.StatusOK, `{"status":"alive"}`},
		{"/undrain", http.StatusOK, `{"status":"ready"}`},
		{"/undrain", http.StatusOK, `{"status":"already ready"}`},
		{"/readyz", http.StatusOK, `{"status":"ready"}`},
	}

	for _, step := range steps {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, step.path, nil))
		assert.Equal(t, step.expectStatus, w.Code, step.path)
		assert.Equal(t, step.expectBody, w.Body.String(), step.path)
	}
}

func TestServer_MountsFileAPI(t *testing.T) {
	router := newTestServer(t, false).getRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/storage/info", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"storageType":"local"`)
}

func TestServer_CORS(t *testing.T) {
	router := newTestServer(t, false).getRouter()

	req := httptest.NewRequest(http.MethodOptions, "/files/upload", nil)
	req.Header.Set("Origin", "https://market.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("Origin", "https://market.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Pprof(t *testing.T) {
	tests := []struct {
		name         string
		pprof        bool
		expectStatus int
	}{
		{"disabled", false, http.StatusNotFound},
		{"enabled", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestServer(t, tt.pprof).getRouter()
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
			assert.Equal(t, tt.expectStatus, w.Code)
		})
	}
}
