package auditor

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAuditReady is returned by a non-blocking claim when the ready
	// queue is empty.
	ErrNoAuditReady = errors.New("auditor: no audit ready")

	// ErrQueueClosed is returned by operations issued after Close.
	ErrQueueClosed = errors.New("auditor: queue closed")

	// ErrEmptyBatch is returned when Add is called with no audits.
	ErrEmptyBatch = errors.New("auditor: empty audit batch")
)

// CorruptEntryError reports a stored or published entry that could not be
// decoded. The queue treats payloads as opaque blobs, so corruption is only
// ever detected at the read edge.
type CorruptEntryError struct {
	Raw []byte
	Err error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("auditor: corrupt entry %q: %v", e.Raw, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }
