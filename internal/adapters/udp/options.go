package udp

import "github.com/okian/hogu/pkg/logger"

// Option applies a configuration option to the Listener.
type Option func(*Listener)

// WithAddr sets the bind address, host:port.
func WithAddr(addr string) Option {
	return func(l *Listener) {
		if addr != "" {
			l.addr = addr
		}
	}
}

// WithInterface binds to the first IPv4 address of the named interface,
// keeping the port of the bind address.
func WithInterface(name string) Option {
	return func(l *Listener) { l.iface = name }
}

// WithReadBuffer sets the socket receive buffer size in bytes.
func WithReadBuffer(n int) Option {
	return func(l *Listener) {
		if n > 0 {
			l.readBuffer = n
		}
	}
}

// WithStateFunc is called after every state transition.
func WithStateFunc(fn func(State)) Option {
	return func(l *Listener) { l.onState = fn }
}

// WithLogger sets the listener logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Listener) {
		if lg != nil {
			l.log = lg
		}
	}
}
