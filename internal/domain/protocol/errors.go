package protocol

import "errors"

// Sentinel errors for lookups by name. Parse itself never returns errors.
var (
	ErrUnknownKind   = errors.New("unknown event kind")
	ErrUnknownStatus = errors.New("unknown recognition status")
)
