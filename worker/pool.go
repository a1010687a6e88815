// Package worker runs the audit verification side: a pool of goroutines
// claims ready audits, verifies them against the storage node, and
// resolves each claim into the pass or fail set.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/backoff"
	"github.com/Storj/service-auditor/queue"
)

// Verifier performs the actual storage audit for a claimed entry.
// It reports whether the proof checked out.
type Verifier interface {
	Verify(ctx context.Context, a *auditor.Audit) (bool, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, a *auditor.Audit) (bool, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, a *auditor.Audit) (bool, error) {
	return f(ctx, a)
}

// Pool manages a set of concurrent goroutines that claim and verify
// audits from a shared queue.
type Pool struct {
	q        *queue.Queue
	verifier Verifier

	concurrency  int
	pollInterval time.Duration
	limiter      *rate.Limiter
	retry        backoff.Strategy
	logger       *slog.Logger

	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithConcurrency sets the number of claim goroutines.
func WithConcurrency(n int) Option {
	return func(p *Pool) { p.concurrency = n }
}

// WithPollInterval sets how long a goroutine sleeps when no audit is
// ready.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollInterval = d }
}

// WithClaimRate caps claims per second across the whole pool. A zero
// or negative value leaves claiming unlimited.
func WithClaimRate(perSecond float64) Option {
	return func(p *Pool) {
		if perSecond > 0 {
			burst := int(perSecond)
			if burst < 1 {
				burst = 1
			}
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithBackoff sets the delay strategy for store errors.
func WithBackoff(s backoff.Strategy) Option {
	return func(p *Pool) { p.retry = s }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// FromConfig maps the worker fields of a Config onto pool options.
func FromConfig(cfg auditor.Config) []Option {
	opts := []Option{
		WithConcurrency(cfg.Concurrency),
		WithClaimRate(cfg.ClaimRate),
	}
	if cfg.PollIntervalSeconds > 0 {
		opts = append(opts, WithPollInterval(time.Duration(cfg.PollIntervalSeconds)*time.Second))
	}
	return opts
}

// NewPool creates a worker pool claiming from q and verifying with v.
func NewPool(q *queue.Queue, v Verifier, opts ...Option) *Pool {
	p := &Pool{
		q:            q,
		verifier:     v,
		concurrency:  4,
		pollInterval: time.Second,
		retry:        backoff.Default(),
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Start launches the claim goroutines. Claims left pending by a prior
// run of the same worker are re-verified first. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.q.WorkerID().String()),
		slog.Int("concurrency", p.concurrency),
	)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.recoverPending(ctx)
		for range p.concurrency {
			p.wg.Add(1)
			go p.claimLoop(ctx)
		}
	}()

	return nil
}

// Stop signals all goroutines to stop and waits for in-flight
// verifications to finish.
func (p *Pool) Stop(_ context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.q.WorkerID().String()))

	close(p.stopCh)
	p.cancel()
	p.wg.Wait()

	p.logger.Info("worker pool stopped")
	return nil
}

// recoverPending re-verifies claims that survived a previous process,
// oldest first, so a crash never strands an audit in the pending queue.
func (p *Pool) recoverPending(ctx context.Context) {
	audits, err := p.q.Pending(ctx)
	if err != nil {
		p.logger.Error("pending recovery failed", slog.String("error", err.Error()))
		return
	}
	for _, a := range audits {
		select {
		case <-p.stopCh:
			return
		default:
		}
		p.process(ctx, a)
	}
}

// claimLoop is run by each claim goroutine.
func (p *Pool) claimLoop(ctx context.Context) {
	defer p.wg.Done()

	attempt := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return
			}
		}

		a, err := p.q.TryClaim(ctx)
		if err != nil {
			if errors.Is(err, auditor.ErrNoAuditReady) {
				attempt = 0
				p.sleep(p.pollInterval)
				continue
			}
			var corrupt *auditor.CorruptEntryError
			if errors.As(err, &corrupt) {
				// The blob already moved to pending; nothing to verify.
				p.logger.Error("claimed corrupt entry",
					slog.String("raw", string(corrupt.Raw)),
					slog.String("error", corrupt.Err.Error()),
				)
				attempt = 0
				continue
			}
			if errors.Is(err, auditor.ErrQueueClosed) || ctx.Err() != nil {
				return
			}
			attempt++
			delay := p.retry.Delay(attempt)
			p.logger.Error("claim failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			p.sleep(delay)
			continue
		}

		attempt = 0
		p.process(ctx, a)
	}
}

// process verifies one claimed audit and resolves the claim. A
// verification error leaves the claim pending for a later attempt.
func (p *Pool) process(ctx context.Context, a *auditor.Audit) {
	passed, err := p.verifier.Verify(ctx, a)
	if err != nil {
		p.logger.Warn("verification failed, leaving audit pending",
			slog.String("audit_id", a.Data.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	effective, err := p.q.Resolve(ctx, a, passed)
	if err != nil {
		p.logger.Error("resolve failed",
			slog.String("audit_id", a.Data.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	p.logger.Debug("audit resolved",
		slog.String("audit_id", a.Data.ID),
		slog.Bool("passed", passed),
		slog.Bool("effective", effective),
	)
}

// sleep waits for d or until the pool stops.
func (p *Pool) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.stopCh:
	case <-timer.C:
	}
}
