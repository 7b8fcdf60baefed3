package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrStopped   = errors.New("persistence workers stopped")
	ErrQueueFull = errors.New("persistence queue full")
	ErrDrain     = errors.New("persistence drain timed out")
)
