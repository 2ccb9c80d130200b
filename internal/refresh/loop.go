// Package refresh polls the record feed on a fixed interval and replaces the
// working record set wholesale.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/civic-hotspot-service/internal/domain"
	"github.com/couchcryptid/civic-hotspot-service/internal/observability"
	"github.com/couchcryptid/civic-hotspot-service/internal/state"
)

// Source fetches the raw feed for a topic. An empty topic means all topics.
type Source interface {
	Fetch(ctx context.Context, topic string) ([]domain.RawRecord, error)
}

// Outcome labels for the refresh_total metric.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeStale   = "stale"
	outcomeSkipped = "skipped"
)

// Loop is the single writer of the working record set. A tick that arrives
// while a fetch is outstanding is skipped; a topic change starts a fetch
// immediately and only the most recently started fetch may be applied.
type Loop struct {
	source   Source
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	records *state.Slot[domain.RecordSet]
	ready   atomic.Bool
	kick    chan struct{}
	wg      sync.WaitGroup

	mu       sync.Mutex
	topic    string
	started  uint64 // sequence of the latest started fetch
	inflight int
	token    uint64 // token of the latest applied set
}

// New creates a Loop polling source every interval for topic.
func New(source Source, interval time.Duration, topic string, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Loop {
	return &Loop{
		source:   source,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		records:  state.NewSlot[domain.RecordSet](nil),
		kick:     make(chan struct{}, 1),
		topic:    topic,
	}
}

// Current returns the working record set, or nil before the first
// successful refresh. The set must not be modified.
func (l *Loop) Current() *domain.RecordSet {
	return l.records.Load()
}

// Changed is closed when the next record set is applied.
func (l *Loop) Changed() <-chan struct{} {
	return l.records.Changed()
}

// Topic is the current topic filter.
func (l *Loop) Topic() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.topic
}

// SetTopic changes the topic filter and requests an immediate refresh. It
// reports whether the topic changed.
func (l *Loop) SetTopic(topic string) bool {
	l.mu.Lock()
	if topic == l.topic {
		l.mu.Unlock()
		return false
	}
	l.topic = topic
	l.mu.Unlock()

	l.logger.Info("topic changed", "topic", topic)
	select {
	case l.kick <- struct{}{}:
	default:
	}
	return true
}

// CheckReadiness returns nil once a record set has been applied.
func (l *Loop) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("no record set has been fetched yet")
	}
	return nil
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
// It waits for outstanding fetches before returning.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("refresh loop started", "interval", l.interval, "topic", l.Topic())
	l.metrics.RefreshLoopRunning.Set(1)
	defer l.metrics.RefreshLoopRunning.Set(0)

	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	l.start(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("refresh loop stopping", "reason", ctx.Err())
			l.wg.Wait()
			return nil
		case <-ticker.Chan():
			l.tick(ctx)
		case <-l.kick:
			l.start(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.mu.Lock()
	busy := l.inflight > 0
	l.mu.Unlock()
	if busy {
		l.metrics.RefreshTotal.WithLabelValues(outcomeSkipped).Inc()
		l.logger.Debug("refresh tick skipped, fetch outstanding")
		return
	}
	l.start(ctx)
}

func (l *Loop) start(ctx context.Context) {
	l.mu.Lock()
	l.started++
	seq := l.started
	topic := l.topic
	l.inflight++
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.fetch(ctx, seq, topic)
	}()
}

func (l *Loop) fetch(ctx context.Context, seq uint64, topic string) {
	begin := time.Now()
	raws, err := l.source.Fetch(ctx, topic)
	var result domain.ValidationResult
	if err == nil {
		result = domain.ValidateBatch(raws)
	}
	l.metrics.RefreshDuration.Observe(time.Since(begin).Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inflight--

	if seq != l.started {
		l.metrics.RefreshTotal.WithLabelValues(outcomeStale).Inc()
		l.logger.Debug("refresh result discarded, newer fetch started", "seq", seq, "latest", l.started)
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.metrics.RefreshTotal.WithLabelValues(outcomeError).Inc()
		l.logger.Error("refresh failed, keeping previous record set", "topic", topic, "error", err)
		return
	}

	l.token++
	set := &domain.RecordSet{
		Records:   result.Records,
		Topic:     topic,
		Token:     l.token,
		Kept:      result.Kept,
		Dropped:   result.Dropped,
		Reasons:   result.Reasons,
		FetchedAt: l.clock.Now(),
	}
	l.records.Store(set)
	l.ready.Store(true)

	l.metrics.RefreshTotal.WithLabelValues(outcomeSuccess).Inc()
	l.metrics.RecordsKept.Add(float64(result.Kept))
	for reason, n := range result.Reasons {
		l.metrics.RecordsDropped.WithLabelValues(reason).Add(float64(n))
	}
	l.metrics.RefreshToken.Set(float64(l.token))
	l.metrics.WorkingSetSize.Set(float64(result.Kept))

	attrs := []any{"token", l.token, "topic", topic, "kept", result.Kept, "dropped", result.Dropped}
	if result.Dropped > 0 {
		attrs = append(attrs, "reasons", result.Reasons)
	}
	l.logger.Info("record set applied", attrs...)
}
