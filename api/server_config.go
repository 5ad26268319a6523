package api

import (
	"log/slog"
	"time"
)

const (
	// DefaultMaxFileSize is the largest accepted generic upload.
	DefaultMaxFileSize int64 = 10 << 20
	// DefaultMaxImageSize is the largest accepted image upload.
	DefaultMaxImageSize int64 = 5 << 20
	// DefaultMaxRequestSize bounds a whole multipart request body.
	DefaultMaxRequestSize int64 = 50 << 20
)

// HTTPServerConfig contains all configuration parameters for the HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// MetricsAddr is the address and port for the metrics server.
	// If empty, metrics server will not be started.
	MetricsAddr string

	// EnablePprof enables the pprof debugging API when true.
	EnablePprof bool

	// Log is the structured logger for server operations.
	Log *slog.Logger

	// DrainDuration is the time to wait after marking server not ready
	// before shutting down, allowing load balancers to detect the change.
	DrainDuration time.Duration

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	GracefulShutdownDuration time.Duration

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Uploads of MaxRequestSize must fit in it.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	WriteTimeout time.Duration

	// AllowedOrigins lists the CORS origins. Empty means all origins.
	AllowedOrigins []string

	Upload UploadLimits
}

// UploadLimits bounds the multipart uploads accepted by the file API.
// Zero values fall back to the package defaults.
type UploadLimits struct {
	MaxFileSize    int64
	MaxImageSize   int64
	MaxRequestSize int64
}

// WithDefaults returns a copy with every zero limit replaced by its default.
func (l UploadLimits) WithDefaults() UploadLimits {
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = DefaultMaxFileSize
	}
	if l.MaxImageSize <= 0 {
		l.MaxImageSize = DefaultMaxImageSize
	}
	if l.MaxRequestSize <= 0 {
		l.MaxRequestSize = DefaultMaxRequestSize
	}
	return l
}
