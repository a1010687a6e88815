package queue

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
)

// Claim takes one audit off the ready tail and onto the head of this
// worker's pending list in a single indivisible RPOPLPUSH, blocking
// indefinitely until an entry is available. The move runs on the dedicated
// blocking client, so other queue operations from this worker proceed
// while a claim is parked. Cancelling the context does not interrupt a
// parked claim; closing the queue does.
//
// On success the raw entry is published on the pending channel and the
// decoded record returned. An undecodable entry yields a
// *auditor.CorruptEntryError with the entry already moved to pending.
func (q *Queue) Claim(ctx context.Context) (*auditor.Audit, error) {
	if q.isClosed() {
		return nil, auditor.ErrQueueClosed
	}

	pending := PendingKey(q.worker)
	raw, err := q.brdb.BRPopLPush(ctx, ReadyKey, pending, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("auditor/queue: blocking claim: %w", err)
	}
	return q.claimed(ctx, pending, raw)
}

// TryClaim is the non-blocking form of Claim. It returns
// auditor.ErrNoAuditReady immediately when the ready queue is empty.
func (q *Queue) TryClaim(ctx context.Context) (*auditor.Audit, error) {
	if q.isClosed() {
		return nil, auditor.ErrQueueClosed
	}

	pending := PendingKey(q.worker)
	raw, err := q.rdb.RPopLPush(ctx, ReadyKey, pending).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, auditor.ErrNoAuditReady
	}
	if err != nil {
		return nil, fmt.Errorf("auditor/queue: claim: %w", err)
	}
	return q.claimed(ctx, pending, raw)
}

// claimed publishes and decodes a freshly moved entry.
func (q *Queue) claimed(ctx context.Context, pending, raw string) (*auditor.Audit, error) {
	q.publish(ctx, pending, []byte(raw))

	a, err := auditor.Decode([]byte(raw))
	if err != nil {
		return nil, err
	}
	q.hooks.EmitAuditClaimed(ctx, a, q.worker)
	return a, nil
}

// Pending returns a point-in-time snapshot of this worker's claimed,
// unresolved audits, oldest claim first. The snapshot is not synchronized
// with concurrent claims or resolutions.
func (q *Queue) Pending(ctx context.Context) ([]*auditor.Audit, error) {
	if q.isClosed() {
		return nil, auditor.ErrQueueClosed
	}

	raws, err := q.rdb.LRange(ctx, PendingKey(q.worker), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("auditor/queue: list pending: %w", err)
	}

	// Claims push onto the list head, so the oldest claim sits at the tail.
	audits := make([]*auditor.Audit, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		a, decErr := auditor.Decode([]byte(raws[i]))
		if decErr != nil {
			return nil, decErr
		}
		audits = append(audits, a)
	}
	return audits, nil
}
