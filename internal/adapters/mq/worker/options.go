package worker

import (
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/retry"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets the number of session shards, one goroutine each.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the total queue capacity shared across shards.
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithRetry sets the per-event retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(p *Pool) { p.retry = cfg }
}

// WithUnknownSink routes persisted unknown-status events to sink.
func WithUnknownSink(sink UnknownSink) Option {
	return func(p *Pool) { p.unknown = sink }
}

// WithOnFailure is called for every event that could not be persisted.
func WithOnFailure(fn FailureFunc) Option {
	return func(p *Pool) { p.onFailure = fn }
}

// WithOnStored is called with the stored event, id assigned, after each
// successful write.
func WithOnStored(fn StoredFunc) Option {
	return func(p *Pool) { p.onStored = fn }
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
