package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/id"
	"github.com/Storj/service-auditor/queue"
	"github.com/Storj/service-auditor/worker"
)

// recordingVerifier records verified audit IDs and answers per verdict.
type recordingVerifier struct {
	mu      sync.Mutex
	seen    []string
	failIDs map[string]bool
	err     error
}

func (v *recordingVerifier) Verify(_ context.Context, a *auditor.Audit) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return false, v.err
	}
	v.seen = append(v.seen, a.Data.ID)
	return !v.failIDs[a.Data.ID], nil
}

func (v *recordingVerifier) seenCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

func newQueue(t *testing.T, workerID id.WorkerID) (*queue.Queue, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	brdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		brdb.Close()
		client.Close()
	})

	return queue.New(rdb, brdb, workerID), client
}

// seedReady pushes due audits through backlog into the ready queue.
func seedReady(t *testing.T, q *queue.Queue, ids ...string) {
	t.Helper()

	ctx := context.Background()
	base := time.Now().UnixMilli() - 10_000
	audits := make([]*auditor.Audit, len(ids))
	for i, id := range ids {
		audits[i] = &auditor.Audit{
			TS:   base + int64(i),
			Data: auditor.Challenge{ID: id},
		}
	}
	if _, err := q.Add(ctx, audits...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := q.Promote(ctx, 0, 0); err != nil {
		t.Fatalf("Promote: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPool_VerifiesAndResolves(t *testing.T) {
	q, client := newQueue(t, "w1")
	ctx := context.Background()

	seedReady(t, q, "a", "b", "c", "d")
	v := &recordingVerifier{failIDs: map[string]bool{"c": true}}

	p := worker.NewPool(q, v,
		worker.WithConcurrency(2),
		worker.WithPollInterval(10*time.Millisecond),
	)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(ctx) //nolint:errcheck // cleanup

	waitFor(t, func() bool { return v.seenCount() == 4 }, "all audits verified")
	waitFor(t, func() bool {
		pass, _ := client.SCard(ctx, queue.PassKey).Result()   //nolint:errcheck // assertion read
		fail, _ := client.SCard(ctx, queue.FailKey).Result()   //nolint:errcheck // assertion read
		left, _ := client.LLen(ctx, queue.PendingKey("w1")).Result() //nolint:errcheck // assertion read
		return pass == 3 && fail == 1 && left == 0
	}, "all claims resolved")
}

func TestPool_VerifyErrorLeavesPending(t *testing.T) {
	q, client := newQueue(t, "w1")
	ctx := context.Background()

	seedReady(t, q, "stuck")
	v := &recordingVerifier{err: errors.New("node unreachable")}

	p := worker.NewPool(q, v,
		worker.WithConcurrency(1),
		worker.WithPollInterval(10*time.Millisecond),
	)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, func() bool {
		n, _ := client.LLen(ctx, queue.PendingKey("w1")).Result() //nolint:errcheck // assertion read
		return n == 1
	}, "audit claimed into pending")
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if n, _ := client.SCard(ctx, queue.PassKey).Result(); n != 0 { //nolint:errcheck // assertion read
		t.Fatalf("expected no pass members, got %d", n)
	}
	if n, _ := client.SCard(ctx, queue.FailKey).Result(); n != 0 { //nolint:errcheck // assertion read
		t.Fatalf("expected no fail members, got %d", n)
	}
	if n, _ := client.LLen(ctx, queue.PendingKey("w1")).Result(); n != 1 { //nolint:errcheck // assertion read
		t.Fatalf("expected audit still pending, got %d entries", n)
	}
}

func TestPool_RecoversPendingOnStart(t *testing.T) {
	q, client := newQueue(t, "w1")
	ctx := context.Background()

	// A prior run claimed the audit but never resolved it.
	seedReady(t, q, "orphan")
	if _, err := q.TryClaim(ctx); err != nil {
		t.Fatalf("TryClaim: %v", err)
	}

	v := &recordingVerifier{}
	p := worker.NewPool(q, v,
		worker.WithConcurrency(1),
		worker.WithPollInterval(10*time.Millisecond),
	)
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(ctx) //nolint:errcheck // cleanup

	waitFor(t, func() bool {
		pass, _ := client.SCard(ctx, queue.PassKey).Result() //nolint:errcheck // assertion read
		return pass == 1
	}, "orphaned claim resolved")
}

func TestPool_StartStopIdempotent(t *testing.T) {
	q, _ := newQueue(t, "w1")
	ctx := context.Background()

	p := worker.NewPool(q, &recordingVerifier{}, worker.WithPollInterval(10*time.Millisecond))

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	q, _ := newQueue(t, "w1")

	cfg := auditor.DefaultConfig()
	cfg.Concurrency = 2
	cfg.PollIntervalSeconds = 3

	p := worker.NewPool(q, &recordingVerifier{}, worker.FromConfig(cfg)...)
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
