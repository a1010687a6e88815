package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
)

// Resolve moves a claimed audit out of this worker's pending list into the
// pass or fail set. Under a WATCH on the pending key, one transaction
// removes a single matching serialized instance from pending and adds the
// entry to the target set. A concurrent mutation of pending aborts the
// commit and the whole operation retries with identical arguments,
// unbounded, no backoff.
//
// Returns whether the target set reported a genuinely new member, taken
// from the set-add reply itself.
func (q *Queue) Resolve(ctx context.Context, a *auditor.Audit, passed bool) (bool, error) {
	if q.isClosed() {
		return false, auditor.ErrQueueClosed
	}

	raw, err := a.Encode()
	if err != nil {
		return false, err
	}

	target := FailKey
	if passed {
		target = PassKey
	}
	pending := PendingKey(q.worker)

	for attempt := 0; ; attempt++ {
		var addCmd *goredis.IntCmd

		err := q.rdb.Watch(ctx, func(tx *goredis.Tx) error {
			if q.beforeCommit != nil {
				q.beforeCommit("resolve")
			}
			_, txErr := tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.LRem(ctx, pending, 1, raw)
				addCmd = pipe.SAdd(ctx, target, raw)
				return nil
			})
			return txErr
		}, pending)

		if errors.Is(err, goredis.TxFailedErr) {
			q.hooks.EmitConflictRetried(ctx, "resolve")
			q.logger.Debug("resolution aborted by concurrent mutation, retrying",
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return false, fmt.Errorf("auditor/queue: resolve: %w", err)
		}

		effective := addCmd.Val() == 1
		q.publish(ctx, target, raw)
		q.hooks.EmitAuditResolved(ctx, a, passed, effective)
		return effective, nil
	}
}
