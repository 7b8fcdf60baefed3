package protocol

import (
	"fmt"
	"strings"
	"time"

	"github.com/okian/hogu/internal/domain/scoring"
)

// Option applies a configuration option to the Codec.
type Option func(*Codec)

// WithVersion sets the protocol version stamped on parsed events.
func WithVersion(version string) Option {
	return func(c *Codec) {
		if v := strings.TrimSpace(version); v != "" {
			c.version = v
		}
	}
}

// WithScorer sets the confidence policy.
func WithScorer(s scoring.Scorer) Option {
	return func(c *Codec) {
		if s != nil {
			c.scorer = s
		}
	}
}

// Codec parses datagrams of one protocol version. It is stateless and safe
// for concurrent use.
type Codec struct {
	version string
	scorer  scoring.Scorer
}

// New creates a Codec with configuration options.
func New(opts ...Option) *Codec {
	c := &Codec{
		version: DefaultVersion,
		scorer:  scoring.NewPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCodec = New()

// Parse parses raw with the default codec.
func Parse(raw string, receivedAt time.Time) Event {
	return defaultCodec.Parse(raw, receivedAt)
}

// Version returns the protocol version this codec validates against.
func (c *Codec) Version() string { return c.version }

// Parse turns one datagram into an Event. It never panics and never fails.
func (c *Codec) Parse(raw string, receivedAt time.Time) (ev Event) {
	ev = Event{
		Kind:            KindRaw,
		Status:          StatusUnknown,
		Raw:             raw,
		ProtocolVersion: c.version,
		ReceivedAt:      receivedAt,
	}
	defer func() {
		if r := recover(); r != nil {
			ev.Kind, ev.Status, ev.Confidence = KindRaw, StatusUnknown, 0
			ev.Payload = Raw{}
			ev.ValidationErrors = []string{fmt.Sprintf("parse aborted: %v", r)}
		}
	}()

	tokens := Tokenize(raw)
	if len(tokens) == 0 {
		ev.Payload = Raw{}
		return ev
	}
	ev.Code = tokens[0]
	code := strings.ToLower(tokens[0])
	args := tokens[1:]
	if len(args) == 0 {
		args = nil
	}

	if deprecatedCodes[code] {
		ev.Kind = KindDeprecated
		ev.Status = StatusDeprecated
		ev.Payload = Deprecated{Fields: args}
		ev.Confidence = c.scorer.Confidence(scoring.GradeDeprecated, 0)
		return ev
	}

	l, ok := layouts[code]
	if !ok {
		ev.Payload = Raw{Fields: args}
		ev.SubCategory = subCategoryOf(code)
		ev.Confidence = c.scorer.Confidence(scoring.GradeUnrecognized, 0)
		return ev
	}

	x, errs := extract(l.fields, args)
	ev.Kind = l.kind
	ev.Payload = l.build(code, x)
	ev.ValidationErrors = errs
	ev.Status = StatusRecognized
	if len(errs) > 0 {
		ev.Status = StatusPartial
	}
	ev.Confidence = c.scorer.Confidence(scoring.GradeRecognized, len(errs))
	return ev
}

// Tokenize normalizes a datagram into fields: surrounding whitespace and
// trailing separators are trimmed, every field is trimmed, and trailing
// empty fields are dropped.
func Tokenize(raw string) []string {
	s := strings.TrimRight(strings.TrimSpace(raw), ";")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}
