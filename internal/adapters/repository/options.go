package repository

import (
	"time"

	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
)

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithPoolOptions forwards options to the connection pool.
func WithPoolOptions(opts ...PoolOption) Option {
	return func(s *SQLStore) {
		s.poolOpts = append(s.poolOpts, opts...)
	}
}

// WithCodec sets the codec used to rebuild payloads on read and to seed rules.
func WithCodec(c *protocol.Codec) Option {
	return func(s *SQLStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides time.Now, for archival tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}
