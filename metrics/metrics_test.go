package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewStorageMetrics("test", reg)
	require.NoError(t, err)

	m.ObserveOperation("remote", "upload", nil)
	m.ObserveOperation("remote", "upload", errors.New("boom"))
	m.ObserveOperation("local", "upload", nil)
	m.ObserveFallback("upload")
	m.SetRemoteAvailable(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("remote", "upload", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("remote", "upload", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("local", "upload", ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteAvailable))

	m.SetRemoteAvailable(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.remoteAvailable))
}

func TestStorageMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewStorageMetrics("test", reg)
	require.NoError(t, err)

	_, err = NewStorageMetrics("test", reg)
	assert.Error(t, err)
}

func TestNilStorageMetrics(t *testing.T) {
	var m *StorageMetrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("remote", "upload", nil)
		m.ObserveFallback("upload")
		m.SetRemoteAvailable(true)
	})
}

func TestMetricsServerHandler(t *testing.T) {
	srv, err := New("marketplace", "127.0.0.1:0")
	require.NoError(t, err)

	srv.Storage.ObserveOperation("local", "download", nil)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `marketplace_storage_operations_total{backend="local",operation="download",result="success"} 1`))
}
