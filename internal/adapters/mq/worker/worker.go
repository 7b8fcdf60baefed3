// Package worker persists stamped events off the receive path. Events are
// sharded by session so one session is always written by one goroutine, in
// submission order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/hogu/internal/adapters/mq/queue"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
	"github.com/okian/hogu/pkg/retry"
)

const defaultQueueSize = 50_000

// Persister writes one event and returns its id.
type Persister interface {
	Store(ctx context.Context, ev model.StoredEvent) (int64, error)
}

// UnknownSink receives raw payloads of unknown-status events.
type UnknownSink interface {
	Collect(ctx context.Context, raw string, seenAt time.Time) error
}

// FailureFunc is told about every event that was dropped.
type FailureFunc func(ev model.StoredEvent, err error)

// StoredFunc is told about every event that was written.
type StoredFunc func(ev model.StoredEvent)

// Stats are cumulative pool counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Persisted uint64 `json:"persisted"`
	Failed    uint64 `json:"failed"`
	Depth     int    `json:"depth"`
}

// Pool owns one queue and one goroutine per shard.
type Pool struct {
	store     Persister
	unknown   UnknownSink
	onFailure FailureFunc
	onStored  StoredFunc
	retry     retry.Config
	workers   int
	queueSize int
	logger    logger.Logger

	shards []*shard

	// runCtx outlives the caller of Start so a stop can drain; Drain cancels
	// it when the drain window closes.
	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
	started   atomic.Bool
	stopOnce  sync.Once

	submitted atomic.Uint64
	persisted atomic.Uint64
	failed    atomic.Uint64
}

type shard struct {
	name  string
	queue *queue.InMemoryQueue
	log   logger.Logger
}

// NewPool creates a pool that writes to store.
func NewPool(store Persister, opts ...Option) *Pool {
	p := &Pool{
		store:     store,
		retry:     retry.DefaultConfig(),
		workers:   runtime.NumCPU(),
		queueSize: defaultQueueSize,
		logger:    logger.Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	perShard := p.queueSize / p.workers
	if perShard < 1 {
		perShard = 1
	}
	p.shards = make([]*shard, p.workers)
	for i := range p.shards {
		name := "worker-" + strconv.Itoa(i)
		p.shards[i] = &shard{
			name:  name,
			queue: queue.NewInMemoryQueue(queue.WithCapacity(perShard), queue.WithName(name)),
			log:   p.logger.Named(name),
		}
	}
	return p
}

// Start launches the shard goroutines. The pool keeps running after ctx ends
// until Drain is called.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.runCtx, p.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	for _, s := range p.shards {
		p.wg.Add(1)
		go p.run(s)
	}
	p.logger.Info(ctx, "persistence workers started",
		logger.Int("workers", len(p.shards)),
		logger.Int("queue_size", p.queueSize),
	)
}

// Submit hands ev to its session shard without blocking. A full or stopped
// queue drops the event: the raw payload is logged and the failure counted.
func (p *Pool) Submit(ctx context.Context, ev model.StoredEvent) error {
	s := p.shardFor(ev.Context.SessionID)
	err := s.queue.Enqueue(ctx, ev)
	if err == nil {
		p.submitted.Add(1)
		return nil
	}
	switch {
	case errors.Is(err, queue.ErrFull):
		err = fmt.Errorf("%w: %s", ErrQueueFull, s.name)
		p.fail(ctx, s.log, ev, "queue_full", err)
	case errors.Is(err, queue.ErrClosed):
		err = ErrStopped
		p.fail(ctx, s.log, ev, "stopped", err)
	default:
		p.fail(ctx, s.log, ev, "cancelled", err)
	}
	return err
}

func (p *Pool) shardFor(session string) *shard {
	return p.shards[xxhash.Sum64String(session)%uint64(len(p.shards))]
}

func (p *Pool) run(s *shard) {
	defer p.wg.Done()
	for ev := range s.queue.Dequeue() {
		p.persist(s, ev)
		metrics.UpdatePersistenceQueueDepth(p.Depth())
	}
}

func (p *Pool) persist(s *shard, ev model.StoredEvent) {
	ctx := p.runCtx
	start := time.Now()

	cfg := p.retry
	cfg.OnRetry = func(attempt int, err error) {
		metrics.RecordPersistenceRetry()
		s.log.Warn(ctx, "retrying event write",
			logger.Int("attempt", attempt),
			logger.String("session", ev.Context.SessionID),
			logger.Uint64("sequence", ev.Sequence),
			logger.Error(err),
		)
	}
	id, err := retry.DoWithResult(ctx, cfg, func(ctx context.Context) (int64, error) {
		return p.store.Store(ctx, ev)
	})
	metrics.RecordPersistenceLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		p.fail(ctx, s.log, ev, "retries_exhausted", err)
		return
	}

	ev.ID = id
	metrics.RecordEventPersisted()

	if ev.Status == protocol.StatusUnknown && p.unknown != nil && ev.Raw != "" {
		if err := p.unknown.Collect(ctx, ev.Raw, ev.ReceivedAt); err != nil {
			s.log.Warn(ctx, "unknown payload not collected", logger.Int64("event_id", id), logger.Error(err))
		}
	}
	if p.onStored != nil {
		p.onStored(ev)
	}
	p.persisted.Add(1)
}

// fail logs the full raw payload so the event can be recovered by hand.
func (p *Pool) fail(ctx context.Context, log logger.Logger, ev model.StoredEvent, reason string, err error) {
	metrics.RecordPersistenceFailure(reason)
	metrics.RecordErrorByComponent("worker", reason)
	log.Error(ctx, "event not persisted",
		logger.String("reason", reason),
		logger.String("session", ev.Context.SessionID),
		logger.Uint64("sequence", ev.Sequence),
		logger.String("raw", ev.Raw),
		logger.Error(err),
	)
	if p.onFailure != nil {
		p.onFailure(ev, err)
	}
	p.failed.Add(1)
}

// Depth returns the number of queued events across shards.
func (p *Pool) Depth() int {
	n := 0
	for _, s := range p.shards {
		n += s.queue.Len()
	}
	return n
}

// Stats returns cumulative counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Persisted: p.persisted.Load(),
		Failed:    p.failed.Load(),
		Depth:     p.Depth(),
	}
}

// Drain stops accepting events and waits for queued events to be written
// until ctx ends. On timeout in-flight writes are cancelled and ErrDrain is
// returned.
func (p *Pool) Drain(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		for _, s := range p.shards {
			_ = s.queue.Close()
		}
		if !p.started.Load() {
			return
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			left := p.Depth()
			p.cancelRun()
			<-done
			err = fmt.Errorf("%w: %d events left", ErrDrain, left)
		}
		p.cancelRun()
		p.logger.Info(ctx, "persistence workers stopped",
			logger.Uint64("persisted", p.persisted.Load()),
			logger.Uint64("failed", p.failed.Load()),
		)
	})
	return err
}
