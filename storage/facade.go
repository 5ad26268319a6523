package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lap-market/marketplace-backend/interfaces"
	"github.com/lap-market/marketplace-backend/metrics"
)

// HealthStatus is the storage health report served by the file API.
type HealthStatus struct {
	CurrentStorage  string `json:"currentStorage"`
	RemoteAvailable bool   `json:"remoteAvailable"`
	StorageInfo     string `json:"storageInfo"`
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
}

// Facade routes storage operations to the remote backend while it is believed
// reachable and to local disk otherwise. A connectivity failure on the remote
// backend demotes it for every later call until RetryRemote succeeds; the failed
// call is re-issued on local and the caller only sees local's result.
//
// Objects are not reconciled between the two backends.
type Facade struct {
	remote  interfaces.ObjectBackend
	local   interfaces.ObjectBackend
	tracker *AvailabilityTracker
	urls    URLResolver
	metrics *metrics.StorageMetrics
	log     *slog.Logger
}

// NewFacade creates a facade and probes the remote backend once. A failed probe
// starts the facade on local storage; it is logged and not returned.
// remote may be nil, in which case every operation goes to local.
func NewFacade(ctx context.Context, remote, local interfaces.ObjectBackend, m *metrics.StorageMetrics, log *slog.Logger) *Facade {
	f := &Facade{
		remote:  remote,
		local:   local,
		tracker: newAvailabilityTracker(m),
		metrics: m,
		log:     log,
	}
	f.probeRemote(ctx)
	return f
}

// Upload stores content under name and returns the stored name.
func (f *Facade) Upload(ctx context.Context, content []byte, contentType, name string) (string, error) {
	version, err := route(f, "upload", func(b interfaces.ObjectBackend) (interfaces.ObjectVersion, error) {
		return b.Upload(ctx, content, contentType, name)
	})
	return version.Name, err
}

// UploadWithMetadata stores content with custom metadata fields. Local storage drops the metadata.
func (f *Facade) UploadWithMetadata(ctx context.Context, content []byte, contentType, name string, metadata map[string]string) (string, error) {
	version, err := route(f, "upload_with_metadata", func(b interfaces.ObjectBackend) (interfaces.ObjectVersion, error) {
		return b.UploadWithMetadata(ctx, content, contentType, name, metadata)
	})
	return version.Name, err
}

// UploadImage stores an image. Non-image content types fail with ErrInvalidObject
// before any backend is touched.
func (f *Facade) UploadImage(ctx context.Context, content []byte, contentType, name string) (string, error) {
	if err := interfaces.ValidateImageContentType(contentType); err != nil {
		return "", err
	}

	version, err := route(f, "upload_image", func(b interfaces.ObjectBackend) (interfaces.ObjectVersion, error) {
		return b.UploadImage(ctx, content, contentType, name)
	})
	return version.Name, err
}

// UploadImageWithDimensions stores an image with width and height metadata; nil dimensions are omitted.
func (f *Facade) UploadImageWithDimensions(ctx context.Context, content []byte, contentType, name string, width, height *int) (string, error) {
	if err := interfaces.ValidateImageContentType(contentType); err != nil {
		return "", err
	}

	metadata := map[string]string{}
	if width != nil {
		metadata["width"] = strconv.Itoa(*width)
	}
	if height != nil {
		metadata["height"] = strconv.Itoa(*height)
	}
	return f.UploadWithMetadata(ctx, content, contentType, name, metadata)
}

// UpdateImage replaces oldName with a new image stored under newName. The old
// image is deleted only after the new content type has been validated.
func (f *Facade) UpdateImage(ctx context.Context, oldName string, content []byte, contentType, newName string) (string, error) {
	if err := interfaces.ValidateImageContentType(contentType); err != nil {
		return "", err
	}

	if oldName != "" {
		exists, err := f.Exists(ctx, oldName)
		if err != nil {
			return "", err
		}
		if exists {
			if err := f.Delete(ctx, oldName); err != nil {
				return "", err
			}
		}
	}

	return f.UploadImage(ctx, content, contentType, newName)
}

// Download returns the object content. Missing objects fail with ErrObjectNotFound.
func (f *Facade) Download(ctx context.Context, name string) ([]byte, error) {
	return route(f, "download", func(b interfaces.ObjectBackend) ([]byte, error) {
		return b.Download(ctx, name)
	})
}

// Delete removes the object. Deleting a missing object succeeds.
func (f *Facade) Delete(ctx context.Context, name string) error {
	_, err := route(f, "delete", func(b interfaces.ObjectBackend) (struct{}, error) {
		return struct{}{}, b.Delete(ctx, name)
	})
	if errors.Is(err, interfaces.ErrObjectNotFound) {
		f.log.Info("Object already absent, nothing to delete", slog.String("name", name))
		return nil
	}
	return err
}

func (f *Facade) Exists(ctx context.Context, name string) (bool, error) {
	return route(f, "exists", func(b interfaces.ObjectBackend) (bool, error) {
		return b.Exists(ctx, name)
	})
}

// List returns up to maxCount names from whichever backend serves the call.
func (f *Facade) List(ctx context.Context, maxCount int) ([]string, error) {
	return route(f, "list", func(b interfaces.ObjectBackend) ([]string, error) {
		return b.List(ctx, maxCount)
	})
}

func (f *Facade) Metadata(ctx context.Context, name string) (map[string]string, error) {
	return route(f, "metadata", func(b interfaces.ObjectBackend) (map[string]string, error) {
		return b.Metadata(ctx, name)
	})
}

// ResolveURL returns the download locator for name. See URLResolver.Resolve.
func (f *Facade) ResolveURL(name string, expiry ...time.Duration) string {
	return f.urls.Resolve(name, expiry...)
}

// NameFromURL is URLResolver.NameFromURL.
func (f *Facade) NameFromURL(locator string) (string, bool) {
	return f.urls.NameFromURL(locator)
}

// CurrentBackendLabel returns "remote" or "local".
func (f *Facade) CurrentBackendLabel() string {
	return f.tracker.Current().String()
}

func (f *Facade) IsRemoteAvailable() bool {
	return f.tracker.IsRemoteAvailable()
}

// RetryRemote probes the remote backend again and returns the resulting availability.
func (f *Facade) RetryRemote(ctx context.Context) bool {
	f.log.Info("Retrying remote storage connection")
	return f.probeRemote(ctx)
}

// StorageInfo describes the backend currently serving requests. Asking the remote
// backend counts as a remote operation: a connectivity failure demotes it.
func (f *Facade) StorageInfo(ctx context.Context) string {
	info, err := f.storageInfo(ctx)
	if err != nil {
		return fmt.Sprintf("Using %s storage: error getting storage info: %v", f.CurrentBackendLabel(), err)
	}
	return info
}

func (f *Facade) storageInfo(ctx context.Context) (string, error) {
	var kind BackendKind
	info, err := route(f, "info", func(b interfaces.ObjectBackend) (string, error) {
		kind = f.kindOf(b)
		return b.Info(ctx)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Using %s storage: %s", kind, info), nil
}

// Health reports which backend is active and whether it can describe itself.
func (f *Facade) Health(ctx context.Context) HealthStatus {
	info, err := f.storageInfo(ctx)

	status := HealthStatus{
		CurrentStorage:  f.CurrentBackendLabel(),
		RemoteAvailable: f.IsRemoteAvailable(),
		StorageInfo:     info,
		Healthy:         err == nil,
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// probeRemote runs the remote probe and stores its result in the tracker.
func (f *Facade) probeRemote(ctx context.Context) bool {
	if f.remote == nil {
		f.tracker.set(false)
		f.log.Info("No remote storage configured, using local file storage")
		return false
	}

	start := time.Now()
	info, err := f.remote.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		f.log.Warn("Remote storage probe aborted, availability unchanged",
			slog.String("backend", f.remote.Name()),
			"err", err)
		return f.tracker.IsRemoteAvailable()
	}
	if err != nil {
		f.tracker.set(false)
		f.log.Warn("Remote storage is not available, falling back to local file storage",
			slog.String("backend", f.remote.Name()),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return false
	}

	f.tracker.set(true)
	f.log.Info("Remote storage is available",
		slog.String("backend", f.remote.Name()),
		slog.String("info", info),
		slog.Duration("duration", time.Since(start)))
	return true
}

func (f *Facade) backend(kind BackendKind) interfaces.ObjectBackend {
	if kind == RemoteBackend && f.remote != nil {
		return f.remote
	}
	return f.local
}

func (f *Facade) kindOf(b interfaces.ObjectBackend) BackendKind {
	if f.remote != nil && b == f.remote {
		return RemoteBackend
	}
	return LocalBackend
}

// route runs call on the current backend and applies decide to its result.
func route[T any](f *Facade, operation string, call func(interfaces.ObjectBackend) (T, error)) (T, error) {
	kind := f.tracker.Current()
	if f.remote == nil {
		kind = LocalBackend
	}

	for {
		result, err := call(f.backend(kind))
		f.metrics.ObserveOperation(kind.String(), operation, err)

		if decide(kind, classify(err)) == stepReturn {
			return result, err
		}

		if f.tracker.demote() {
			f.log.Warn("Remote storage failed, falling back to local storage",
				slog.String("operation", operation),
				"err", err)
		} else {
			f.log.Debug("Remote storage failed after demotion, using local storage",
				slog.String("operation", operation),
				"err", err)
		}
		f.metrics.ObserveFallback(operation)
		kind = LocalBackend
	}
}
