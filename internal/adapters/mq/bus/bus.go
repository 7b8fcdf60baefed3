// Package bus fans stored events and status snapshots out to in-process
// subscribers. Every subscriber owns a bounded queue; when it is full the
// oldest message is dropped so a slow consumer never stalls the pipeline.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

// DefaultBufferSize is used when Subscribe is given a size below 1.
const DefaultBufferSize = 1024

// dropWarnEvery rate-limits the lagging-subscriber warning.
const dropWarnEvery = 100

// Message carries exactly one of Event or Status.
type Message struct {
	Event  *model.StoredEvent    `json:"event,omitempty"`
	Status *model.StatusSnapshot `json:"status,omitempty"`
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	name string
	bus  *Bus

	mu     sync.Mutex // serializes drop-oldest against concurrent publishers
	ch     chan Message
	closed bool

	dropped atomic.Uint64
}

// Name returns the subscriber name.
func (s *Subscription) Name() string { return s.name }

// C returns the delivery channel. It is closed on Unsubscribe or bus Close.
func (s *Subscription) C() <-chan Message { return s.ch }

// Dropped returns how many messages were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Unsubscribe detaches the subscription from its bus.
func (s *Subscription) Unsubscribe() { s.bus.Unsubscribe(s) }

func (s *Subscription) deliver(msg Message) (dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- msg:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			dropped = true
			s.dropped.Add(1)
		default:
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Bus is safe for concurrent use. Publish never blocks.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool
	log    logger.Logger
}

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.log = l
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[string]*Subscription),
		log:  logger.Named("bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a consumer with a queue of size messages.
func (b *Bus) Subscribe(name string, size int) (*Subscription, error) {
	if size < 1 {
		size = DefaultBufferSize
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if _, ok := b.subs[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	s := &Subscription{name: name, bus: b, ch: make(chan Message, size)}
	b.subs[name] = s
	metrics.UpdateBusSubscribers(len(b.subs))
	return s, nil
}

// Unsubscribe removes s and closes its channel. Unknown subscriptions are
// ignored.
func (b *Bus) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	b.mu.Lock()
	if cur, ok := b.subs[s.name]; ok && cur == s {
		delete(b.subs, s.name)
		metrics.UpdateBusSubscribers(len(b.subs))
	}
	b.mu.Unlock()
	s.close()
}

// Publish delivers a stored event to every subscriber.
func (b *Bus) Publish(ev model.StoredEvent) {
	b.broadcast(Message{Event: &ev})
}

// PublishStatus delivers a status snapshot to every subscriber.
func (b *Bus) PublishStatus(st model.StatusSnapshot) {
	b.broadcast(Message{Status: &st})
}

func (b *Bus) broadcast(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	metrics.RecordBusPublish()
	for name, s := range b.subs {
		if !s.deliver(msg) {
			continue
		}
		metrics.RecordBusDrop(name)
		if n := s.Dropped(); n == 1 || n%dropWarnEvery == 0 {
			b.log.Warn(context.Background(), "subscriber lagging, dropped oldest message",
				logger.String("subscriber", name),
				logger.Uint64("dropped_total", n),
			)
		}
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches and closes every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
	metrics.UpdateBusSubscribers(0)
}
