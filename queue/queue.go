package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/hook"
	"github.com/Storj/service-auditor/id"
)

// Option configures the Queue.
type Option func(*Queue)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithHooks sets the in-process lifecycle hook registry.
func WithHooks(r *hook.Registry) Option {
	return func(q *Queue) { q.hooks = r }
}

// Queue is one process's handle on the shared audit pipeline. It holds the
// worker identity that namespaces the pending queue and two Redis clients:
// rdb for everything except the blocking claim, brdb for the blocking
// claim only, so a claim parked in BRPOPLPUSH never stalls other calls.
type Queue struct {
	rdb    goredis.UniversalClient
	brdb   goredis.UniversalClient
	worker id.WorkerID
	hooks  *hook.Registry
	logger *slog.Logger

	ownsClients bool
	closed      atomic.Bool

	// beforeCommit, when set, runs between the watched read and the
	// transaction commit. Tests use it to force a conflicting mutation.
	beforeCommit func(op string)
}

// New creates a Queue over existing clients. The caller owns both client
// lifecycles. An unset worker identity gets a generated unique one.
func New(rdb, brdb goredis.UniversalClient, worker id.WorkerID, opts ...Option) *Queue {
	q := &Queue{
		rdb:    rdb,
		brdb:   brdb,
		worker: worker,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(q)
	}
	if q.hooks == nil {
		q.hooks = hook.NewRegistry(q.logger)
	}
	if q.worker.IsZero() {
		q.worker = id.NewWorkerID()
		q.logger.Warn("no worker id configured, generated one",
			slog.String("worker_id", q.worker.String()),
		)
	}
	return q
}

// Open dials the store from the given config and returns a Queue that owns
// both connections; Close releases them. The credential is omitted from
// the connection parameters when not supplied.
func Open(cfg auditor.Config, opts ...Option) (*Queue, error) {
	worker := id.WorkerID(cfg.WorkerID)
	if cfg.WorkerID != "" {
		parsed, err := id.ParseWorkerID(cfg.WorkerID)
		if err != nil {
			return nil, fmt.Errorf("auditor/queue: open: %w", err)
		}
		worker = parsed
	}

	connect := func() *goredis.Client {
		return goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	q := New(connect(), connect(), worker, opts...)
	q.ownsClients = true
	return q, nil
}

// WorkerID returns the identity namespacing this queue's pending list.
func (q *Queue) WorkerID() id.WorkerID { return q.worker }

// Ping verifies the store connection is alive.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Close releases both clients when the Queue owns them. Closing the
// blocking client is also the only way to interrupt a parked Claim.
func (q *Queue) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	if !q.ownsClients {
		return nil
	}
	err := q.brdb.Close()
	if rdbErr := q.rdb.Close(); err == nil {
		err = rdbErr
	}
	if err != nil {
		return fmt.Errorf("auditor/queue: close: %w", err)
	}
	return nil
}

func (q *Queue) isClosed() bool { return q.closed.Load() }

// publish sends a committed transition on the channel named after the
// affected queue. The side-channel is best-effort: a failed publish is
// logged, never allowed to fail an already committed transition.
func (q *Queue) publish(ctx context.Context, channel string, payload []byte) {
	if err := q.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		q.logger.Warn("publish transition failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
