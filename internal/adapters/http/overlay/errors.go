package overlay

import "errors"

// Sentinel errors for the overlay bridge.
var (
	ErrUpgrade   = errors.New("websocket upgrade failed")
	ErrSubscribe = errors.New("bus subscribe failed")
)
