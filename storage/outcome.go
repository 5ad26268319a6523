package storage

import (
	"context"
	"errors"

	"github.com/lap-market/marketplace-backend/interfaces"
)

// BackendKind selects one of the two backends behind the facade.
type BackendKind int

const (
	RemoteBackend BackendKind = iota
	LocalBackend
)

// String returns the label reported by Facade.CurrentBackendLabel.
func (k BackendKind) String() string {
	if k == RemoteBackend {
		return "remote"
	}
	return "local"
}

// outcome is the class of a single backend call result.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConnectivityFailure
	outcomeOtherFailure
)

// classify maps a call result to its outcome. Cancellation by the caller is
// never a connectivity failure, even when a backend also reports it as one.
func classify(err error) outcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeOtherFailure
	case interfaces.IsConnectivityError(err):
		return outcomeConnectivityFailure
	default:
		return outcomeOtherFailure
	}
}

// step is what the facade does after a backend call.
type step int

const (
	// stepReturn hands the result to the caller.
	stepReturn step = iota
	// stepFallback demotes the remote backend and re-issues the call on local.
	stepFallback
)

// decide is the whole routing policy: only a connectivity failure on the remote
// backend is retried, and only once, on local.
func decide(kind BackendKind, o outcome) step {
	if kind == RemoteBackend && o == outcomeConnectivityFailure {
		return stepFallback
	}
	return stepReturn
}
