package udp

import "errors"

// Sentinel kinds for listener errors.
var (
	// ErrBind covers failures to resolve the interface or bind the socket.
	ErrBind = errors.New("udp bind failed")
	// ErrState is returned when Start or Stop is called in the wrong state.
	ErrState = errors.New("invalid listener state")
)
