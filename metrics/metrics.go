// Package metrics exports Prometheus counters for audit queue transitions.
// Register the Collector as a lifecycle hook to track scheduling, promotion,
// claim, and resolution rates plus optimistic-transaction retries performed
// by this process.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/hook"
	"github.com/Storj/service-auditor/id"
)

// Compile-time interface checks.
var (
	_ hook.Hook            = (*Collector)(nil)
	_ hook.AuditsScheduled = (*Collector)(nil)
	_ hook.AuditsPromoted  = (*Collector)(nil)
	_ hook.AuditClaimed    = (*Collector)(nil)
	_ hook.AuditResolved   = (*Collector)(nil)
	_ hook.ConflictRetried = (*Collector)(nil)
)

// Collector records queue transition metrics. Counters cover only the
// transitions this process performed; store-wide totals come from summing
// across processes.
type Collector struct {
	scheduled prometheus.Counter
	promoted  prometheus.Counter
	claimed   prometheus.Counter
	resolved  *prometheus.CounterVec
	conflicts *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		scheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_audits_scheduled_total",
			Help: "Audits added to the backlog by this process.",
		}),
		promoted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_audits_promoted_total",
			Help: "Audits moved from backlog to ready by this process.",
		}),
		claimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auditor_audits_claimed_total",
			Help: "Audits claimed into this worker's pending queue.",
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_audits_resolved_total",
			Help: "Audits resolved by this worker, by verdict.",
		}, []string{"verdict"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_tx_conflicts_total",
			Help: "Optimistic transaction retries, by operation.",
		}, []string{"op"}),
	}

	for _, m := range []prometheus.Collector{
		c.scheduled, c.promoted, c.claimed, c.resolved, c.conflicts,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Name implements hook.Hook.
func (c *Collector) Name() string { return "prometheus-metrics" }

// OnAuditsScheduled implements hook.AuditsScheduled.
func (c *Collector) OnAuditsScheduled(_ context.Context, audits []*auditor.Audit) error {
	c.scheduled.Add(float64(len(audits)))
	return nil
}

// OnAuditsPromoted implements hook.AuditsPromoted.
func (c *Collector) OnAuditsPromoted(_ context.Context, audits []*auditor.Audit) error {
	c.promoted.Add(float64(len(audits)))
	return nil
}

// OnAuditClaimed implements hook.AuditClaimed.
func (c *Collector) OnAuditClaimed(_ context.Context, _ *auditor.Audit, _ id.WorkerID) error {
	c.claimed.Inc()
	return nil
}

// OnAuditResolved implements hook.AuditResolved.
func (c *Collector) OnAuditResolved(_ context.Context, _ *auditor.Audit, passed, _ bool) error {
	verdict := "fail"
	if passed {
		verdict = "pass"
	}
	c.resolved.WithLabelValues(verdict).Inc()
	return nil
}

// OnConflictRetried implements hook.ConflictRetried.
func (c *Collector) OnConflictRetried(_ context.Context, op string) error {
	c.conflicts.WithLabelValues(op).Inc()
	return nil
}
