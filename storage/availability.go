package storage

import (
	"github.com/lap-market/marketplace-backend/metrics"
	"go.uber.org/atomic"
)

// AvailabilityTracker holds the process-wide belief that the remote backend is
// reachable. Reads and writes are single atomic operations; concurrent writers
// race and the last one wins.
type AvailabilityTracker struct {
	remoteAvailable atomic.Bool
	metrics         *metrics.StorageMetrics
}

func newAvailabilityTracker(m *metrics.StorageMetrics) *AvailabilityTracker {
	return &AvailabilityTracker{metrics: m}
}

func (t *AvailabilityTracker) IsRemoteAvailable() bool {
	return t.remoteAvailable.Load()
}

// Current returns the backend the next operation should start on.
func (t *AvailabilityTracker) Current() BackendKind {
	if t.remoteAvailable.Load() {
		return RemoteBackend
	}
	return LocalBackend
}

func (t *AvailabilityTracker) set(available bool) {
	t.remoteAvailable.Store(available)
	t.metrics.SetRemoteAvailable(available)
}

// demote marks the remote backend unreachable and reports whether this call changed the state.
func (t *AvailabilityTracker) demote() bool {
	changed := t.remoteAvailable.Swap(false)
	t.metrics.SetRemoteAvailable(false)
	return changed
}
