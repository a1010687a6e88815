// Package hook defines in-process lifecycle hooks for the audit queue.
// Hooks are notified of queue transitions (audits scheduled, promoted,
// claimed, resolved) and of optimistic-transaction retries, and can react
// to them: metrics, tracing, debugging.
//
// Each transition is a separate interface so hooks opt in only to the
// events they care about. Hooks observe transitions that this process
// performed; for transitions performed by other processes, subscribe to
// the store-side notification channels instead (package notify).
package hook

import (
	"context"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/id"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// AuditsScheduled is called after a batch is added to the backlog.
type AuditsScheduled interface {
	OnAuditsScheduled(ctx context.Context, audits []*auditor.Audit) error
}

// AuditsPromoted is called after due audits move from backlog to ready.
type AuditsPromoted interface {
	OnAuditsPromoted(ctx context.Context, audits []*auditor.Audit) error
}

// AuditClaimed is called after a worker takes an audit off the ready queue.
type AuditClaimed interface {
	OnAuditClaimed(ctx context.Context, a *auditor.Audit, worker id.WorkerID) error
}

// AuditResolved is called after a claimed audit reaches a terminal set.
// Effective is false when the target set already contained the entry.
type AuditResolved interface {
	OnAuditResolved(ctx context.Context, a *auditor.Audit, passed, effective bool) error
}

// ConflictRetried is called each time an optimistic transaction is aborted
// by a concurrent mutation and the operation restarts. op is "promote" or
// "resolve".
type ConflictRetried interface {
	OnConflictRetried(ctx context.Context, op string) error
}
