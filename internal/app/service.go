// Package service wires the ingestion pipeline and exposes the command
// surface used by the HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/adapters/mq/worker"
	"github.com/okian/hogu/internal/adapters/repository"
	"github.com/okian/hogu/internal/adapters/udp"
	"github.com/okian/hogu/internal/domain/correlation"
	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/internal/domain/unknown"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
	"github.com/okian/hogu/pkg/retry"
)

// Default service configuration constants.
const (
	defaultDrainTimeout   = 10 * time.Second
	defaultStatusInterval = time.Second
	defaultQueueSize      = 50_000
)

// Service owns the pipeline: codec, context tracker, correlation window,
// persistence workers and the distribution bus.
type Service struct {
	mu sync.Mutex // guards lifecycle transitions

	store     repository.Store
	codec     *protocol.Codec
	tracker   *eventctx.Tracker
	window    *correlation.Window
	collector *unknown.Collector
	bus       *bus.Bus
	workers   *worker.Pool
	listener  *udp.Listener

	// Configuration
	udpAddr        string
	udpIface       string
	readBuffer     int
	workerCount    int
	queueSize      int
	retry          retry.Config
	drainTimeout   time.Duration
	statusInterval time.Duration
	corrCapacity   int
	corrWindow     time.Duration
	failureHistory int

	// State
	started    bool
	closed     bool
	stopStatus context.CancelFunc
	statusDone chan struct{}

	received  atomic.Uint64
	published atomic.Uint64
	unknowns  atomic.Uint64
	failures  *failureLog

	logger logger.Logger
}

// New constructs a Service over store.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:          store,
		codec:          protocol.New(),
		udpAddr:        udp.DefaultAddr,
		readBuffer:     udp.DefaultReadBuffer,
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		retry:          retry.DefaultConfig(),
		drainTimeout:   defaultDrainTimeout,
		statusInterval: defaultStatusInterval,
		corrCapacity:   correlation.DefaultCapacity,
		corrWindow:     correlation.DefaultWindow,
		failureHistory: defaultFailureHistory,
		logger:         logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = bus.New()
	}

	s.failures = newFailureLog(s.failureHistory)
	s.tracker = eventctx.NewTracker(eventctx.WithOnChange(metrics.RecordContextChange))
	s.window = correlation.New(correlation.WithCapacity(s.corrCapacity), correlation.WithWindow(s.corrWindow))
	s.collector = unknown.New(store)
	s.workers = worker.NewPool(store,
		worker.WithWorkers(s.workerCount),
		worker.WithQueueSize(s.queueSize),
		worker.WithRetry(s.retry),
		worker.WithUnknownSink(s.collector),
		worker.WithOnFailure(s.failures.record),
		worker.WithOnStored(func(ev model.StoredEvent) {
			if ev.Status == protocol.StatusUnknown {
				s.unknowns.Add(1)
			}
		}),
	)
	s.listener = udp.New(s.HandleDatagram,
		udp.WithAddr(s.udpAddr),
		udp.WithInterface(s.udpIface),
		udp.WithReadBuffer(s.readBuffer),
	)
	return s
}

// Start launches the persistence workers and the status reporter. Ingestion
// stays stopped until StartIngestion.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.started {
		return nil
	}

	s.workers.Start(ctx)

	statusCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopStatus = cancel
	s.statusDone = make(chan struct{})
	go s.reportStatus(statusCtx, s.statusDone)

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.String("protocol_version", s.codec.Version()),
	)
	return nil
}

// Stop halts ingestion, gives queued writes the drain window, stops the
// status reporter and closes the bus and the store. A stopped Service cannot
// be started again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping service")

	if err := s.listener.Stop(ctx); err != nil {
		s.logger.Warn(ctx, "listener stop", logger.Error(err))
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drainTimeout)
	defer cancel()
	drainErr := s.workers.Drain(drainCtx)
	if drainErr != nil {
		s.logger.Error(ctx, "persistence drain incomplete", logger.Error(drainErr))
	}

	s.stopStatus()
	<-s.statusDone
	s.bus.Close()

	s.started, s.closed = false, true
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	s.logger.Info(ctx, "service stopped")
	return drainErr
}

func (s *Service) reportStatus(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Status()
			metrics.UpdatePersistenceQueueDepth(st.QueueDepth)
			s.bus.PublishStatus(st)
		}
	}
}

// Status returns a point-in-time snapshot of the pipeline.
func (s *Service) Status() model.StatusSnapshot {
	ws := s.workers.Stats()
	return model.StatusSnapshot{
		At:         time.Now(),
		Ingestion:  s.listener.State().String(),
		Context:    s.tracker.Current(),
		Received:   s.received.Load(),
		Published:  s.published.Load(),
		Persisted:  ws.Persisted,
		Failed:     ws.Failed,
		Unknown:    s.unknowns.Load(),
		QueueDepth: ws.Depth,
		Pool:       s.store.PoolStats(),

		RecentFailures: s.failures.recent(),
	}
}

// Bus returns the distribution bus for in-process subscribers.
func (s *Service) Bus() *bus.Bus { return s.bus }

// recoverInto turns a panic into ErrInternal on *err.
func (s *Service) recoverInto(ctx context.Context, op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	s.recovered(ctx, op, r, err)
}

// recoverDatagram is recoverInto for the receive path; the label carrying
// the raw payload is only built when a panic was recovered.
func (s *Service) recoverDatagram(ctx context.Context, raw string) {
	r := recover()
	if r == nil {
		return
	}
	var err error
	s.recovered(ctx, "handle datagram: "+raw, r, &err)
}

func (s *Service) recovered(ctx context.Context, op string, r any, err *error) {
	metrics.RecordErrorByComponent("service", "panic")
	s.logger.Error(ctx, "recovered panic",
		logger.String("op", op),
		logger.Any("panic", r),
		logger.String("stack", string(debug.Stack())),
	)
	*err = fmt.Errorf("%w: %s: %v", ErrInternal, op, r)
}
