// Package metrics exposes Prometheus collectors for the storage layer and the
// server that serves them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation results recorded in the operations counter.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// StorageMetrics records storage facade activity. A nil *StorageMetrics is valid
// and records nothing.
type StorageMetrics struct {
	operations      *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	remoteAvailable prometheus.Gauge
}

// NewStorageMetrics creates the storage collectors and registers them with reg.
func NewStorageMetrics(namespace string, reg prometheus.Registerer) (*StorageMetrics, error) {
	m := &StorageMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage operations by backend, operation and result.",
		}, []string{"backend", "operation", "result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "fallbacks_total",
			Help:      "Operations re-issued against local storage after a remote failure.",
		}, []string{"operation"}),
		remoteAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "remote_available",
			Help:      "1 when the remote backend is believed reachable, 0 otherwise.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.fallbacks, m.remoteAvailable} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *StorageMetrics) ObserveOperation(backend, operation string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(backend, operation, result).Inc()
}

func (m *StorageMetrics) ObserveFallback(operation string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(operation).Inc()
}

func (m *StorageMetrics) SetRemoteAvailable(available bool) {
	if m == nil {
		return
	}
	if available {
		m.remoteAvailable.Set(1)
	} else {
		m.remoteAvailable.Set(0)
	}
}

// MetricsServer serves a dedicated Prometheus registry on /metrics.
type MetricsServer struct {
	Registry *prometheus.Registry
	Storage  *StorageMetrics

	srv *http.Server
}

// New creates a metrics server listening on addr. Collectors are namespaced with namespace.
func New(namespace, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	storage, err := NewStorageMetrics(namespace, registry)
	if err != nil {
		return nil, err
	}

	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &MetricsServer{
		Registry: registry,
		Storage:  storage,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
