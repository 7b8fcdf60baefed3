// Package scoring defines the confidence policy applied to parsed events.
package scoring

import (
	"math"
)

// Default confidence policy constants.
const (
	defaultPenaltyPerViolation = 0.35
	defaultFloor               = 0.1
	defaultDeprecated          = 0.8
	fullConfidence             = 1.0
	noConfidence               = 0.0
)

// Grade classifies how far the codec got with a payload.
type Grade int

const (
	// GradeUnrecognized covers empty input and unknown event codes.
	GradeUnrecognized Grade = iota
	// GradeRecognized covers known event codes, with or without violations.
	GradeRecognized
	// GradeDeprecated covers known codes retired from the current protocol.
	GradeDeprecated
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithPenalty sets the confidence removed per validation violation.
func WithPenalty(penalty float64) Option {
	return func(p *Policy) {
		if penalty > 0 && penalty <= 1 {
			p.penalty = penalty
		}
	}
}

// WithFloor sets the lowest confidence a recognized event can reach.
func WithFloor(floor float64) Option {
	return func(p *Policy) {
		if floor > 0 && floor < 1 {
			p.floor = floor
		}
	}
}

// WithDeprecatedConfidence sets the confidence granted to deprecated codes.
func WithDeprecatedConfidence(c float64) Option {
	return func(p *Policy) {
		if c >= 0 && c <= 1 {
			p.deprecated = c
		}
	}
}

// Scorer computes a confidence from a grade and a violation count.
type Scorer interface {
	Confidence(g Grade, violations int) float64
}

// Policy implements Scorer with a linear per-violation penalty.
type Policy struct {
	penalty    float64
	floor      float64
	deprecated float64
}

// NewPolicy creates a confidence policy with configuration options.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		penalty:    defaultPenaltyPerViolation,
		floor:      defaultFloor,
		deprecated: defaultDeprecated,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Confidence returns a value in [0, 1]. Recognized events without violations
// always score 1.0 and unrecognized ones always score 0.0.
func (p *Policy) Confidence(g Grade, violations int) float64 {
	switch g {
	case GradeRecognized:
		if violations <= 0 {
			return fullConfidence
		}
		c := fullConfidence - p.penalty*float64(violations)
		return round2(math.Max(p.floor, c))
	case GradeDeprecated:
		return p.deprecated
	default:
		return noConfidence
	}
}

// round2 keeps stored confidences free of binary float noise (0.30000000000000004).
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
