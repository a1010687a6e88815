// Package promoter runs the controller-side promotion loop. On each
// schedule fire it moves every due backlog entry into the ready queue,
// where blocked workers pick it up immediately.
package promoter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/Storj/service-auditor/queue"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression or descriptor.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Promoter promotes due audits on a fixed schedule.
type Promoter struct {
	q        *queue.Queue
	schedule cronlib.Schedule
	logger   *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Promoter.
type Option func(*Promoter)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Promoter) { p.logger = logger }
}

// New creates a Promoter firing per the given cron expression or
// descriptor, such as "@every 30s" or "*/5 * * * *".
func New(q *queue.Queue, expr string, opts ...Option) (*Promoter, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	p := &Promoter{
		q:        q,
		schedule: schedule,
		logger:   slog.Default(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start launches the promotion loop. It returns immediately.
func (p *Promoter) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("promoter starting",
		slog.String("next_fire", p.schedule.Next(time.Now()).Format(time.RFC3339)),
	)

	p.wg.Add(1)
	go p.loop()

	return nil
}

// Stop signals the loop to stop and waits for the in-flight promotion
// cycle, if any, to finish.
func (p *Promoter) Stop(_ context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()

	p.logger.Info("promoter stopped")
	return nil
}

func (p *Promoter) loop() {
	defer p.wg.Done()

	timer := time.NewTimer(time.Until(p.schedule.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-timer.C:
			p.promote()
			timer.Reset(time.Until(p.schedule.Next(time.Now())))
		}
	}
}

// promote runs one promotion cycle covering everything due up to now.
func (p *Promoter) promote() {
	promoted, err := p.q.Promote(context.Background(), 0, 0)
	if err != nil {
		p.logger.Error("promotion cycle failed", slog.String("error", err.Error()))
		return
	}
	p.logger.Debug("promotion cycle complete", slog.Bool("promoted", promoted))
}
