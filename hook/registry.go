package hook

import (
	"context"
	"log/slog"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/id"
)

// Named entry types pair a hook implementation with the name captured at
// registration time, so the emit methods never type-assert back to Hook.
type scheduledEntry struct {
	name string
	hook AuditsScheduled
}

type promotedEntry struct {
	name string
	hook AuditsPromoted
}

type claimedEntry struct {
	name string
	hook AuditClaimed
}

type resolvedEntry struct {
	name string
	hook AuditResolved
}

type conflictEntry struct {
	name string
	hook ConflictRetried
}

// Registry holds registered hooks and dispatches queue transitions to
// them. Hooks are type-cached at registration time so emit calls iterate
// only over hooks that implement the relevant interface.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	scheduled []scheduledEntry
	promoted  []promotedEntry
	claimed   []claimedEntry
	resolved  []resolvedEntry
	conflict  []conflictEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable caches.
// Hooks are notified in registration order.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if v, ok := h.(AuditsScheduled); ok {
		r.scheduled = append(r.scheduled, scheduledEntry{name, v})
	}
	if v, ok := h.(AuditsPromoted); ok {
		r.promoted = append(r.promoted, promotedEntry{name, v})
	}
	if v, ok := h.(AuditClaimed); ok {
		r.claimed = append(r.claimed, claimedEntry{name, v})
	}
	if v, ok := h.(AuditResolved); ok {
		r.resolved = append(r.resolved, resolvedEntry{name, v})
	}
	if v, ok := h.(ConflictRetried); ok {
		r.conflict = append(r.conflict, conflictEntry{name, v})
	}
}

// Hooks returns all registered hooks.
func (r *Registry) Hooks() []Hook { return r.hooks }

// EmitAuditsScheduled notifies all hooks that implement AuditsScheduled.
func (r *Registry) EmitAuditsScheduled(ctx context.Context, audits []*auditor.Audit) {
	for _, e := range r.scheduled {
		if err := e.hook.OnAuditsScheduled(ctx, audits); err != nil {
			r.logHookError("OnAuditsScheduled", e.name, err)
		}
	}
}

// EmitAuditsPromoted notifies all hooks that implement AuditsPromoted.
func (r *Registry) EmitAuditsPromoted(ctx context.Context, audits []*auditor.Audit) {
	for _, e := range r.promoted {
		if err := e.hook.OnAuditsPromoted(ctx, audits); err != nil {
			r.logHookError("OnAuditsPromoted", e.name, err)
		}
	}
}

// EmitAuditClaimed notifies all hooks that implement AuditClaimed.
func (r *Registry) EmitAuditClaimed(ctx context.Context, a *auditor.Audit, worker id.WorkerID) {
	for _, e := range r.claimed {
		if err := e.hook.OnAuditClaimed(ctx, a, worker); err != nil {
			r.logHookError("OnAuditClaimed", e.name, err)
		}
	}
}

// EmitAuditResolved notifies all hooks that implement AuditResolved.
func (r *Registry) EmitAuditResolved(ctx context.Context, a *auditor.Audit, passed, effective bool) {
	for _, e := range r.resolved {
		if err := e.hook.OnAuditResolved(ctx, a, passed, effective); err != nil {
			r.logHookError("OnAuditResolved", e.name, err)
		}
	}
}

// EmitConflictRetried notifies all hooks that implement ConflictRetried.
func (r *Registry) EmitConflictRetried(ctx context.Context, op string) {
	for _, e := range r.conflict {
		if err := e.hook.OnConflictRetried(ctx, op); err != nil {
			r.logHookError("OnConflictRetried", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never propagate to the
// queue operation that triggered them.
func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Warn("hook error",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}
