package replay

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/okian/hogu/pkg/logger"
)

// Sender writes datagrams to one UDP target in order.
type Sender struct {
	conn    net.Conn
	rate    int
	verbose bool
}

// Dial connects a sender to target. A rate of zero disables pacing.
func Dial(target string, rate int, verbose bool) (*Sender, error) {
	conn, err := net.Dial("udp4", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Sender{conn: conn, rate: rate, verbose: verbose}, nil
}

// Send writes every payload and records results in stats. It stops early
// when ctx is done.
func (s *Sender) Send(ctx context.Context, payloads []string, stats *Stats) error {
	var tick <-chan time.Time
	if s.rate > 0 {
		t := time.NewTicker(time.Second / time.Duration(s.rate))
		defer t.Stop()
		tick = t.C
	}

	for i, p := range payloads {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := s.conn.Write([]byte(p)); err != nil {
			stats.Failed++
			logger.Get().Warn(ctx, "datagram not sent", logger.Int("index", i), logger.Error(err))
			continue
		}
		stats.Sent++
		if s.verbose {
			logger.Get().Debug(ctx, "sent", logger.Int("index", i), logger.String("raw", p))
		}
	}
	return nil
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
