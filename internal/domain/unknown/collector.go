// Package unknown collects fingerprints of payloads the codec could not
// recognize, so protocol changes can be spotted and classified later.
package unknown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

// Store persists unknown records keyed by pattern hash.
type Store interface {
	// UpsertUnknown inserts rec or, when its hash exists, increments the
	// occurrence count and advances last_seen and the sample payload.
	UpsertUnknown(ctx context.Context, rec model.UnknownRecord) error
	// AnnotateUnknown sets the suggested kind and notes of an existing record.
	AnnotateUnknown(ctx context.Context, hash, suggestedKind, notes string) error
}

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithLogger sets the collector logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// Collector fingerprints unknown payloads and upserts them.
type Collector struct {
	store Store
	log   logger.Logger
}

// New creates a Collector backed by store.
func New(store Store, opts ...Option) *Collector {
	c := &Collector{
		store: store,
		log:   logger.Named("unknown"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect records one occurrence of raw. No classification happens here.
func (c *Collector) Collect(ctx context.Context, raw string, seenAt time.Time) error {
	if c.store == nil {
		return ErrNoStore
	}
	rec := model.UnknownRecord{
		PatternHash:     protocol.Fingerprint(raw),
		Pattern:         protocol.Pattern(raw),
		RawPayload:      raw,
		SubCategory:     protocol.Parse(raw, seenAt).SubCategory,
		OccurrenceCount: 1,
		FirstSeen:       seenAt,
		LastSeen:        seenAt,
	}
	if err := c.store.UpsertUnknown(ctx, rec); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCollect, rec.PatternHash, err)
	}
	metrics.RecordUnknownEvent()
	c.log.Debug(ctx, "unknown payload collected",
		logger.String("pattern_hash", rec.PatternHash),
		logger.String("pattern", rec.Pattern),
		logger.String("sub_category", rec.SubCategory),
	)
	return nil
}

// Annotate attaches an externally derived classification to a record.
func (c *Collector) Annotate(ctx context.Context, hash, suggestedKind, notes string) error {
	if c.store == nil {
		return ErrNoStore
	}
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return fmt.Errorf("%w: empty pattern hash", ErrInvalidAnnotation)
	}
	if err := c.store.AnnotateUnknown(ctx, hash, strings.TrimSpace(suggestedKind), notes); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAnnotate, hash, err)
	}
	return nil
}
