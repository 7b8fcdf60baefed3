package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrInternal wraps panics recovered at the command boundary.
	ErrInternal = errors.New("internal error")
	// ErrNoContext is returned when no event context has been set.
	ErrNoContext = errors.New("no context")
	// ErrNotStarted is returned by commands that need Start first.
	ErrNotStarted = errors.New("service not started")
	// ErrClosed is returned by Start after Stop.
	ErrClosed = errors.New("service closed")
)
