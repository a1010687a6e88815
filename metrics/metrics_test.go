package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	auditor "github.com/Storj/service-auditor"
)

func newCollector(t *testing.T) *Collector {
	t.Helper()

	c, err := NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c
}

func TestCollector_Counts(t *testing.T) {
	c := newCollector(t)
	ctx := context.Background()

	batch := []*auditor.Audit{{TS: 1}, {TS: 2}, {TS: 3}}
	if err := c.OnAuditsScheduled(ctx, batch); err != nil {
		t.Fatalf("OnAuditsScheduled: %v", err)
	}
	if err := c.OnAuditsPromoted(ctx, batch[:2]); err != nil {
		t.Fatalf("OnAuditsPromoted: %v", err)
	}
	if err := c.OnAuditClaimed(ctx, batch[0], "w1"); err != nil {
		t.Fatalf("OnAuditClaimed: %v", err)
	}

	if got := testutil.ToFloat64(c.scheduled); got != 3 {
		t.Fatalf("scheduled = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.promoted); got != 2 {
		t.Fatalf("promoted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.claimed); got != 1 {
		t.Fatalf("claimed = %v, want 1", got)
	}
}

func TestCollector_ResolvedByVerdict(t *testing.T) {
	c := newCollector(t)
	ctx := context.Background()
	a := &auditor.Audit{TS: 1}

	if err := c.OnAuditResolved(ctx, a, true, true); err != nil {
		t.Fatalf("OnAuditResolved: %v", err)
	}
	if err := c.OnAuditResolved(ctx, a, false, true); err != nil {
		t.Fatalf("OnAuditResolved: %v", err)
	}
	if err := c.OnAuditResolved(ctx, a, false, false); err != nil {
		t.Fatalf("OnAuditResolved: %v", err)
	}

	if got := testutil.ToFloat64(c.resolved.WithLabelValues("pass")); got != 1 {
		t.Fatalf("resolved{pass} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.resolved.WithLabelValues("fail")); got != 2 {
		t.Fatalf("resolved{fail} = %v, want 2", got)
	}
}

func TestCollector_ConflictsByOp(t *testing.T) {
	c := newCollector(t)
	ctx := context.Background()

	for range 2 {
		if err := c.OnConflictRetried(ctx, "promote"); err != nil {
			t.Fatalf("OnConflictRetried: %v", err)
		}
	}
	if err := c.OnConflictRetried(ctx, "resolve"); err != nil {
		t.Fatalf("OnConflictRetried: %v", err)
	}

	if got := testutil.ToFloat64(c.conflicts.WithLabelValues("promote")); got != 2 {
		t.Fatalf("conflicts{promote} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.conflicts.WithLabelValues("resolve")); got != 1 {
		t.Fatalf("conflicts{resolve} = %v, want 1", got)
	}
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewCollector(reg); err != nil {
		t.Fatalf("first NewCollector: %v", err)
	}
	if _, err := NewCollector(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
