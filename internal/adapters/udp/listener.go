// Package udp receives PSS datagrams. A Listener owns one socket and one
// receive goroutine and moves through Stopped, Starting, Running and
// Stopping.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

// Listener defaults.
const (
	DefaultAddr       = "0.0.0.0:6000"
	DefaultReadBuffer = 2 * 1024 * 1024

	readDeadline  = 100 * time.Millisecond
	maxDatagram   = 65535
	socketErrWait = 10 * time.Millisecond
)

// State is the ingestion lifecycle state.
type State int32

// Lifecycle states.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Handler is called on the receive goroutine for every datagram.
type Handler func(ctx context.Context, payload string, receivedAt time.Time)

// Listener binds a UDP socket and feeds datagrams to a Handler.
type Listener struct {
	addr       string
	iface      string
	readBuffer int
	handler    Handler
	onState    func(State)
	log        logger.Logger

	state atomic.Int32

	mu       sync.Mutex
	conn     *net.UDPConn
	shutdown chan struct{}
	done     chan struct{}

	received atomic.Uint64
	errs     atomic.Uint64
}

// New creates a stopped listener.
func New(handler Handler, opts ...Option) *Listener {
	l := &Listener{
		addr:       DefaultAddr,
		readBuffer: DefaultReadBuffer,
		handler:    handler,
		log:        logger.Named("udp"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state.
func (l *Listener) State() State { return State(l.state.Load()) }

// Received returns the number of datagrams read since creation.
func (l *Listener) Received() uint64 { return l.received.Load() }

// LocalAddr returns the bound address while running.
func (l *Listener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) setState(s State) {
	l.state.Store(int32(s))
	metrics.UpdateIngestionState(int(s))
	if l.onState != nil {
		l.onState(s)
	}
}

// Start resolves, binds and launches the receive loop. A bind failure
// returns the listener to Stopped and wraps ErrBind. The loop keeps the
// values of ctx but not its cancellation; only Stop ends it.
func (l *Listener) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return fmt.Errorf("%w: start while %s", ErrState, l.State())
	}
	l.setState(StateStarting)

	conn, err := l.bind()
	if err != nil {
		l.setState(StateStopped)
		metrics.RecordErrorByComponent("udp", "bind")
		return err
	}

	l.mu.Lock()
	l.conn = conn
	l.shutdown = make(chan struct{})
	l.done = make(chan struct{})
	shutdown, done := l.shutdown, l.done
	l.mu.Unlock()

	l.setState(StateRunning)
	l.log.Info(ctx, "listening", logger.String("addr", conn.LocalAddr().String()))

	loopCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		l.readLoop(loopCtx, conn, shutdown)
	}()
	return nil
}

func (l *Listener) bind() (*net.UDPConn, error) {
	addr := l.addr
	if l.iface != "" {
		ip, err := interfaceIPv4(l.iface)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBind, err)
		}
		_, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: bind address %q: %w", ErrBind, addr, err)
		}
		addr = net.JoinHostPort(ip.String(), port)
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrBind, addr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", ErrBind, addr, err)
	}
	if err := conn.SetReadBuffer(l.readBuffer); err != nil {
		// some systems cap the buffer; keep going with the default
		l.log.Warn(context.Background(), "could not set read buffer",
			logger.Int("buffer_size", l.readBuffer), logger.Error(err))
	}
	return conn, nil
}

// interfaceIPv4 returns the first IPv4 address of the named interface.
func interfaceIPv4(name string) (net.IP, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", name, err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil, fmt.Errorf("interface %s addresses: %w", name, err)
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("interface %s has no IPv4 address", name)
}

func (l *Listener) readLoop(ctx context.Context, conn *net.UDPConn, shutdown <-chan struct{}) {
	buf := make([]byte, maxDatagram)
	for {
		select {
		case <-shutdown:
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.errs.Add(1)
			metrics.RecordSocketError()
			l.log.Warn(ctx, "receive failed", logger.Error(err))
			time.Sleep(socketErrWait)
			continue
		}

		now := time.Now()
		l.received.Add(1)
		metrics.RecordDatagram(n)
		if l.handler != nil {
			l.handler(ctx, string(buf[:n]), now)
		}
	}
}

// Stop lets the current receive finish, exits the loop and closes the
// socket. It waits for the loop until ctx ends.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		if l.State() == StateStopped {
			return nil
		}
		return fmt.Errorf("%w: stop while %s", ErrState, l.State())
	}
	l.setState(StateStopping)

	l.mu.Lock()
	close(l.shutdown)
	done, conn := l.done, l.conn
	l.mu.Unlock()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("stop listener: %w", ctx.Err())
	}

	_ = conn.Close()
	<-done

	l.mu.Lock()
	l.conn = nil
	l.mu.Unlock()

	l.setState(StateStopped)
	l.log.Info(ctx, "stopped",
		logger.Uint64("received", l.received.Load()),
		logger.Uint64("socket_errors", l.errs.Load()),
	)
	return err
}

// Port returns the bound port, or 0 when not running.
func (l *Listener) Port() int {
	a, ok := l.LocalAddr().(*net.UDPAddr)
	if !ok || a == nil {
		return 0
	}
	return a.Port
}
