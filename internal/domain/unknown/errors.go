package unknown

import "errors"

// Sentinel errors for the collector.
var (
	ErrNoStore           = errors.New("unknown collector has no store")
	ErrCollect           = errors.New("collect unknown payload")
	ErrAnnotate          = errors.New("annotate unknown payload")
	ErrInvalidAnnotation = errors.New("invalid annotation")
)
