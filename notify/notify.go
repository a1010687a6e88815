// Package notify turns the pub/sub messages published on the queue's
// channels into typed lifecycle events. Any process can run a Monitor
// to observe scheduling, promotion, claims, and resolutions happening
// across the whole fleet without polling the store.
package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	auditor "github.com/Storj/service-auditor"
	"github.com/Storj/service-auditor/id"
	"github.com/Storj/service-auditor/queue"
)

// Kind identifies which transition an event describes.
type Kind string

const (
	// KindScheduled fires when a batch lands in the backlog.
	KindScheduled Kind = "scheduled"
	// KindPromoted fires when a batch moves to the ready queue.
	KindPromoted Kind = "promoted"
	// KindClaimed fires when a worker claims an audit.
	KindClaimed Kind = "claimed"
	// KindPassed fires when an audit resolves into the pass set.
	KindPassed Kind = "passed"
	// KindFailed fires when an audit resolves into the fail set.
	KindFailed Kind = "failed"
)

// Event is one observed queue transition. Worker is set only for
// KindClaimed events.
type Event struct {
	Kind    Kind
	Channel string
	Worker  id.WorkerID
	Audits  []*auditor.Audit
}

// DefaultBufferSize is the default event channel buffer.
const DefaultBufferSize = 64

// Channels returns the channel names covering every transition for the
// given workers. With no workers it covers the shared channels only.
func Channels(workers ...id.WorkerID) []string {
	chs := []string{queue.BacklogKey, queue.ReadyKey, queue.PassKey, queue.FailKey}
	for _, w := range workers {
		chs = append(chs, queue.PendingKey(w))
	}
	return chs
}

// Monitor subscribes to queue channels and fans decoded events out on
// a single channel. Events are dropped, with a warning, when the
// receiver falls behind the buffer.
type Monitor struct {
	rdb    goredis.UniversalClient
	logger *slog.Logger

	bufferSize int
	events     chan Event
	pubsub     *goredis.PubSub
	wg         sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithBufferSize sets the event channel buffer.
func WithBufferSize(size int) Option {
	return func(m *Monitor) { m.bufferSize = size }
}

// NewMonitor creates a Monitor on an existing Redis client. The client
// stays owned by the caller.
func NewMonitor(rdb goredis.UniversalClient, opts ...Option) *Monitor {
	m := &Monitor{
		rdb:        rdb,
		logger:     slog.Default(),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to the given channels and begins delivering events.
func (m *Monitor) Start(ctx context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil
	}
	if len(channels) == 0 {
		channels = Channels()
	}

	m.pubsub = m.rdb.Subscribe(ctx, channels...)
	if _, err := m.pubsub.Receive(ctx); err != nil {
		m.pubsub.Close() //nolint:errcheck // subscription never established
		m.pubsub = nil
		return err
	}

	m.started = true
	m.events = make(chan Event, m.bufferSize)

	m.wg.Add(1)
	go m.receiveLoop()

	m.logger.Info("queue monitor started", slog.Any("channels", channels))
	return nil
}

// Events returns the event channel. It is closed by Close.
func (m *Monitor) Events() <-chan Event { return m.events }

// Close tears down the subscription and closes the event channel.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	err := m.pubsub.Close()
	m.wg.Wait()
	close(m.events)
	return err
}

func (m *Monitor) receiveLoop() {
	defer m.wg.Done()

	for msg := range m.pubsub.Channel() {
		ev, ok := m.decode(msg.Channel, []byte(msg.Payload))
		if !ok {
			continue
		}
		select {
		case m.events <- ev:
		default:
			m.logger.Warn("event receiver behind, dropping event",
				slog.String("channel", msg.Channel),
				slog.String("kind", string(ev.Kind)),
			)
		}
	}
}

// decode maps a raw pub/sub message onto a typed event. Backlog and
// ready channels carry batches; the others carry a single entry.
func (m *Monitor) decode(channel string, payload []byte) (Event, bool) {
	ev := Event{Channel: channel}

	switch {
	case channel == queue.BacklogKey:
		ev.Kind = KindScheduled
	case channel == queue.ReadyKey:
		ev.Kind = KindPromoted
	case channel == queue.PassKey:
		ev.Kind = KindPassed
	case channel == queue.FailKey:
		ev.Kind = KindFailed
	case strings.HasPrefix(channel, queue.PendingKey("")):
		ev.Kind = KindClaimed
		ev.Worker = id.WorkerID(strings.TrimPrefix(channel, queue.PendingKey("")))
	default:
		m.logger.Warn("message on unknown channel", slog.String("channel", channel))
		return Event{}, false
	}

	var err error
	if ev.Kind == KindScheduled || ev.Kind == KindPromoted {
		ev.Audits, err = auditor.DecodeBatch(payload)
	} else {
		var a *auditor.Audit
		if a, err = auditor.Decode(payload); err == nil {
			ev.Audits = []*auditor.Audit{a}
		}
	}
	if err != nil {
		m.logger.Warn("undecodable message",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return Event{}, false
	}
	return ev, true
}
