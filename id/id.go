// Package id defines the worker identity type for the audit queue.
//
// A WorkerID namespaces one worker's pending queue and its notification
// channel. IDs are plain strings on the wire; generated IDs carry a "wkr_"
// prefix and a UUID suffix so independent workers can never collide.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultWorker is the fixed placeholder identity. Workers sharing it share
// one pending queue, which is only safe when a single worker process runs
// against the store. Use NewWorkerID for anything else.
const DefaultWorker WorkerID = "default"

// WorkerID identifies one worker process.
type WorkerID string

// NewWorkerID generates a globally unique worker identity.
func NewWorkerID() WorkerID {
	return WorkerID("wkr_" + uuid.NewString())
}

// ParseWorkerID validates an externally supplied identity. Identities are
// embedded in Redis key and channel names, so separators are rejected.
func ParseWorkerID(s string) (WorkerID, error) {
	if s == "" {
		return "", fmt.Errorf("id: empty worker id")
	}
	if strings.ContainsAny(s, ": \t\n") {
		return "", fmt.Errorf("id: worker id %q contains reserved characters", s)
	}
	return WorkerID(s), nil
}

// String returns the wire form of the identity.
func (w WorkerID) String() string { return string(w) }

// IsZero reports whether the identity is unset.
func (w WorkerID) IsZero() bool { return w == "" }
