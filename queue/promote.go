package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
)

// Promote atomically moves every backlog audit with start <= ts <= stop
// into the ready queue, preserving ascending ts order. A start of 0 means
// the beginning of time; a stop of 0 means "now" evaluated per attempt.
//
// The move runs under a WATCH on the backlog: read the due range, then
// commit a single transaction that removes the range and appends the read
// entries to the ready tail. If another process touches the backlog
// between read and commit, the commit aborts and the whole cycle restarts
// with the original start and a freshly computed stop, so nothing due is
// permanently missed and nothing a concurrent promoter already moved is
// reprocessed. Retries are unbounded with no backoff; under sustained
// contention this call can take arbitrarily long.
//
// Returns whether the ready queue grew, i.e. whether any audits were
// actually promoted.
func (q *Queue) Promote(ctx context.Context, start, stop int64) (bool, error) {
	if q.isClosed() {
		return false, auditor.ErrQueueClosed
	}

	for attempt := 0; ; attempt++ {
		effStop := stop
		if stop == 0 || attempt > 0 {
			effStop = time.Now().UnixMilli()
		}

		grew, raws, err := q.promoteOnce(ctx, start, effStop)
		if errors.Is(err, goredis.TxFailedErr) {
			q.hooks.EmitConflictRetried(ctx, "promote")
			q.logger.Debug("promotion aborted by concurrent mutation, retrying",
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return false, err
		}
		if len(raws) == 0 {
			return false, nil
		}

		q.publish(ctx, ReadyKey, encodeRawBatch(raws))
		q.emitPromoted(ctx, raws)
		return grew, nil
	}
}

// promoteOnce performs one watched read-then-commit cycle. It returns
// goredis.TxFailedErr when the commit was aborted by a concurrent backlog
// mutation.
func (q *Queue) promoteOnce(ctx context.Context, start, stop int64) (bool, []json.RawMessage, error) {
	minScore := strconv.FormatInt(start, 10)
	maxScore := strconv.FormatInt(stop, 10)

	var (
		raws []json.RawMessage
		grew bool
	)

	err := q.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		members, err := tx.ZRangeByScore(ctx, BacklogKey, &goredis.ZRangeBy{
			Min: minScore,
			Max: maxScore,
		}).Result()
		if err != nil {
			return fmt.Errorf("read due backlog: %w", err)
		}
		if len(members) == 0 {
			// Returning before EXEC releases the watch; no mutation.
			return nil
		}

		lenBefore, err := tx.LLen(ctx, ReadyKey).Result()
		if err != nil {
			return fmt.Errorf("read ready length: %w", err)
		}

		if q.beforeCommit != nil {
			q.beforeCommit("promote")
		}

		entries := make([]interface{}, len(members))
		for i, m := range members {
			entries[i] = m
		}

		var pushCmd *goredis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.ZRemRangeByScore(ctx, BacklogKey, minScore, maxScore)
			pushCmd = pipe.RPush(ctx, ReadyKey, entries...)
			return nil
		})
		if err != nil {
			// Includes TxFailedErr on a concurrent backlog mutation.
			return err
		}

		raws = make([]json.RawMessage, len(members))
		for i, m := range members {
			raws[i] = json.RawMessage(m)
		}
		grew = pushCmd.Val() > lenBefore
		return nil
	}, BacklogKey)

	if err != nil && !errors.Is(err, goredis.TxFailedErr) {
		return false, nil, fmt.Errorf("auditor/queue: promote: %w", err)
	}
	return grew, raws, err
}

// emitPromoted decodes the promoted entries for in-process hooks. The
// promotion itself never inspects payloads, so an undecodable entry is
// logged and skipped here rather than failing the committed move.
func (q *Queue) emitPromoted(ctx context.Context, raws []json.RawMessage) {
	audits := make([]*auditor.Audit, 0, len(raws))
	for _, raw := range raws {
		a, err := auditor.Decode(raw)
		if err != nil {
			q.logger.Warn("promoted entry is not decodable",
				slog.String("error", err.Error()),
			)
			continue
		}
		audits = append(audits, a)
	}
	if len(audits) > 0 {
		q.hooks.EmitAuditsPromoted(ctx, audits)
	}
}
