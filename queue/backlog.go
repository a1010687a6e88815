package queue

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
)

// Add schedules a batch of audits into the backlog, scored by ts, as a
// single atomic ZADD. On success the serialized batch is published on the
// backlog channel and the store-reported number of added members is
// returned. The write is atomic for the whole batch; on error the caller
// must not assume partial application.
func (q *Queue) Add(ctx context.Context, audits ...*auditor.Audit) (int64, error) {
	if q.isClosed() {
		return 0, auditor.ErrQueueClosed
	}
	if len(audits) == 0 {
		return 0, auditor.ErrEmptyBatch
	}

	members := make([]goredis.Z, len(audits))
	raws := make([]json.RawMessage, len(audits))
	for i, a := range audits {
		raw, err := a.Encode()
		if err != nil {
			return 0, err
		}
		members[i] = goredis.Z{Score: float64(a.TS), Member: raw}
		raws[i] = raw
	}

	added, err := q.rdb.ZAdd(ctx, BacklogKey, members...).Result()
	if err != nil {
		return 0, fmt.Errorf("auditor/queue: add to backlog: %w", err)
	}

	q.publish(ctx, BacklogKey, encodeRawBatch(raws))
	q.hooks.EmitAuditsScheduled(ctx, audits)
	return added, nil
}

// encodeRawBatch joins already-serialized entries into one JSON array
// without re-encoding them, preserving each entry's stored byte identity.
func encodeRawBatch(raws []json.RawMessage) []byte {
	batch, err := json.Marshal(raws)
	if err != nil {
		// Raw entries are valid JSON by construction.
		panic("auditor/queue: marshal raw batch: " + err.Error())
	}
	return batch
}
