package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

// Pool defaults.
const (
	DefaultPoolSize        = 10
	DefaultAcquireTimeout  = 5 * time.Second
	DefaultIdleTimeout     = 5 * time.Minute
	DefaultHealthCheck     = 30 * time.Second
	defaultJanitorInterval = 30 * time.Second
)

type pooledConn struct {
	conn     *sql.Conn
	lastUsed time.Time
}

// ConnFunc runs once on every new physical connection.
type ConnFunc func(ctx context.Context, conn *sql.Conn) error

// Pool is a fixed-size set of reusable connections. Acquire waits up to the
// acquire timeout, then fails only the calling operation.
type Pool struct {
	db             *sql.DB
	size           int
	acquireTimeout time.Duration
	idleTimeout    time.Duration
	healthAfter    time.Duration
	janitorEvery   time.Duration
	onConnect      ConnFunc

	slots chan struct{}
	idle  chan *pooledConn

	inUse    atomic.Int64
	timeouts atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
	log       logger.Logger
}

// PoolOption applies a configuration option to the Pool.
type PoolOption func(*Pool)

// WithSize sets the number of pooled connections.
func WithSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithAcquireTimeout bounds waiting for a free connection.
func WithAcquireTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.acquireTimeout = d
		}
	}
}

// WithIdleTimeout closes connections idle for longer than d.
func WithIdleTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithHealthCheckAfter pings connections idle for longer than d before reuse.
func WithHealthCheckAfter(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d >= 0 {
			p.healthAfter = d
		}
	}
}

// WithJanitorInterval sets how often idle connections are swept.
func WithJanitorInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.janitorEvery = d
		}
	}
}

// WithConnFunc sets the per-connection initializer.
func WithConnFunc(fn ConnFunc) PoolOption {
	return func(p *Pool) { p.onConnect = fn }
}

// NewPool wraps db. The pool takes over connection reuse, so db keeps no
// idle connections of its own.
func NewPool(db *sql.DB, opts ...PoolOption) *Pool {
	p := &Pool{
		db:             db,
		size:           DefaultPoolSize,
		acquireTimeout: DefaultAcquireTimeout,
		idleTimeout:    DefaultIdleTimeout,
		healthAfter:    DefaultHealthCheck,
		janitorEvery:   defaultJanitorInterval,
		closed:         make(chan struct{}),
		log:            logger.Named("pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.slots = make(chan struct{}, p.size)
	p.idle = make(chan *pooledConn, p.size)

	db.SetMaxOpenConns(p.size)
	db.SetMaxIdleConns(0)

	p.wg.Add(1)
	go p.janitor()
	return p
}

// Conn is a connection checked out of the pool. Call Release exactly once.
type Conn struct {
	*sql.Conn
	pool *Pool
	pc   *pooledConn
	bad  bool
}

// MarkBad discards the connection on release instead of reusing it.
func (c *Conn) MarkBad() { c.bad = true }

// Release returns the connection to the pool.
func (c *Conn) Release() {
	if c.pc == nil {
		return
	}
	c.pool.release(c.pc, c.bad)
	c.pc = nil
}

// Acquire checks out a connection, waiting up to the acquire timeout.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	select {
	case <-p.closed:
		return nil, ErrPoolClosed
	default:
	}

	start := time.Now()
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
	case <-timer.C:
		p.timeouts.Add(1)
		metrics.RecordPoolTimeout()
		return nil, fmt.Errorf("%w: waited %s for one of %d connections", ErrPoolExhausted, p.acquireTimeout, p.size)
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire connection: %w", ctx.Err())
	case <-p.closed:
		return nil, ErrPoolClosed
	}
	metrics.RecordPoolWait(float64(time.Since(start).Microseconds()) / 1000)

	pc, err := p.checkout(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	p.inUse.Add(1)
	p.updateGauges()
	return &Conn{Conn: pc.conn, pool: p, pc: pc}, nil
}

// checkout reuses an idle connection when healthy, else opens a new one.
func (p *Pool) checkout(ctx context.Context) (*pooledConn, error) {
	for {
		select {
		case pc := <-p.idle:
			if p.healthAfter == 0 || time.Since(pc.lastUsed) < p.healthAfter {
				return pc, nil
			}
			err := pc.conn.PingContext(ctx)
			if err == nil {
				return pc, nil
			}
			p.log.Warn(ctx, "discarding unhealthy connection", logger.Error(err))
			p.discard(pc)
		default:
			return p.open(ctx)
		}
	}
}

func (p *Pool) open(ctx context.Context) (*pooledConn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	if p.onConnect != nil {
		if err := p.onConnect(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("init connection: %w", err)
		}
	}
	return &pooledConn{conn: conn, lastUsed: time.Now()}, nil
}

func (p *Pool) release(pc *pooledConn, bad bool) {
	p.inUse.Add(-1)
	defer func() {
		<-p.slots
		p.updateGauges()
	}()

	select {
	case <-p.closed:
		p.discard(pc)
		return
	default:
	}
	if bad {
		p.discard(pc)
		return
	}
	pc.lastUsed = time.Now()
	select {
	case p.idle <- pc:
	default:
		p.discard(pc)
	}
}

func (p *Pool) discard(pc *pooledConn) {
	metrics.RecordPoolDiscard()
	if err := pc.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		p.log.Debug(context.Background(), "close connection", logger.Error(err))
	}
}

// janitor closes connections idle past the idle timeout.
func (p *Pool) janitor() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.janitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	n := len(p.idle)
	for i := 0; i < n; i++ {
		select {
		case pc := <-p.idle:
			if time.Since(pc.lastUsed) > p.idleTimeout {
				p.discard(pc)
				continue
			}
			select {
			case p.idle <- pc:
			default:
				p.discard(pc)
			}
		default:
			return
		}
	}
	p.updateGauges()
}

// Stats reports pool occupancy.
func (p *Pool) Stats() model.PoolStats {
	return model.PoolStats{
		Size:     p.size,
		InUse:    int(p.inUse.Load()),
		Idle:     len(p.idle),
		Timeouts: p.timeouts.Load(),
	}
}

func (p *Pool) updateGauges() {
	metrics.UpdatePoolConnections(int(p.inUse.Load()), len(p.idle))
}

// Close stops the janitor, closes idle connections and the database.
// Connections still checked out are closed on release.
func (p *Pool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		p.wg.Wait()
	drain:
		for {
			select {
			case pc := <-p.idle:
				p.discard(pc)
			default:
				break drain
			}
		}
		err = p.db.Close()
	})
	return err
}

// isBadConn reports errors after which a connection must not be reused.
func isBadConn(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}
