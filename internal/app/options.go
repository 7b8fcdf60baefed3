package service

import (
	"time"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/retry"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithUDPAddr sets the datagram bind address.
func WithUDPAddr(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.udpAddr = addr
		}
	}
}

// WithUDPInterface binds to the first IPv4 address of a network interface.
func WithUDPInterface(name string) Option {
	return func(s *Service) { s.udpIface = name }
}

// WithReadBuffer sets the socket receive buffer size.
func WithReadBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.readBuffer = n
		}
	}
}

// WithWorkerCount sets the number of persistence shards.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the total persistence queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRetry sets the persistence retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(s *Service) { s.retry = cfg }
}

// WithDrainTimeout bounds how long shutdown waits for queued writes.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// WithStatusInterval sets the cadence of status snapshots on the bus.
func WithStatusInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statusInterval = d
		}
	}
}

// WithCorrelation sets the per-athlete ring capacity and the enrichment
// window.
func WithCorrelation(capacity int, window time.Duration) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.corrCapacity = capacity
		}
		if window > 0 {
			s.corrWindow = window
		}
	}
}

// WithFailureHistory sets how many recent persistence failures the status
// snapshot carries.
func WithFailureHistory(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.failureHistory = n
		}
	}
}

// WithCodec sets the protocol codec.
func WithCodec(c *protocol.Codec) Option {
	return func(s *Service) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithBus sets the distribution bus.
func WithBus(b *bus.Bus) Option {
	return func(s *Service) {
		if b != nil {
			s.bus = b
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
