// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/hogu/internal/domain/correlation"
	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/protocol"
)

// StoredEvent is a parsed event stamped with context and sequence.
// It is immutable once written except for audited status overrides.
type StoredEvent struct {
	ID int64 `json:"id,omitempty"` // assigned by the store
	protocol.Event
	Context        eventctx.Context        `json:"context"`
	Sequence       uint64                  `json:"sequence"`
	ProcessingTime time.Duration           `json:"processing_time_ns"` // receive -> persistence handoff
	CreatedAt      time.Time               `json:"created_at"`
	Enrichment     *correlation.Enrichment `json:"enrichment,omitempty"`
}

// StatusChange is one audited manual status override.
type StatusChange struct {
	EventID   int64           `json:"event_id"`
	OldStatus protocol.Status `json:"old_status"`
	NewStatus protocol.Status `json:"new_status"`
	ChangedBy string          `json:"changed_by"`
	Reason    string          `json:"reason,omitempty"`
	ChangedAt time.Time       `json:"changed_at"`
}

// UnknownRecord aggregates occurrences of one unrecognized payload shape.
type UnknownRecord struct {
	PatternHash     string    `json:"pattern_hash"`
	Pattern         string    `json:"pattern"`
	RawPayload      string    `json:"raw_payload"` // most recent sample
	SubCategory     string    `json:"sub_category,omitempty"`
	OccurrenceCount int64     `json:"occurrence_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	SuggestedKind   string    `json:"suggested_kind,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// Statistic aggregates processing time per session, version, kind and status.
type Statistic struct {
	SessionID       string          `json:"session_id"`
	ProtocolVersion string          `json:"protocol_version"`
	Kind            protocol.Kind   `json:"kind"`
	Status          protocol.Status `json:"status"`
	Count           int64           `json:"count"`
	TotalMicros     int64           `json:"total_us"`
	MinMicros       int64           `json:"min_us"`
	MaxMicros       int64           `json:"max_us"`
}

// AverageMicros returns the mean processing time.
func (s Statistic) AverageMicros() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.TotalMicros) / float64(s.Count)
}

// EventFilter narrows event queries. Zero fields match everything.
type EventFilter struct {
	SessionID  string
	MatchID    string
	Kind       protocol.Kind
	Status     protocol.Status
	Since      time.Time
	Until      time.Time
	Limit      int
	// Descending returns the newest events first.
	Descending bool
}

// PoolStats describes the store connection pool.
type PoolStats struct {
	Size     int    `json:"size"`
	InUse    int    `json:"in_use"`
	Idle     int    `json:"idle"`
	Timeouts uint64 `json:"timeouts"`
}

// StatusSnapshot is the periodic, non per-event status broadcast.
type StatusSnapshot struct {
	At         time.Time        `json:"at"`
	Ingestion  string           `json:"ingestion"`
	Context    eventctx.Context `json:"context"`
	Received   uint64           `json:"received"`
	Published  uint64           `json:"published"`
	Persisted  uint64           `json:"persisted"`
	Failed     uint64           `json:"failed"`
	Unknown    uint64           `json:"unknown"`
	QueueDepth int              `json:"queue_depth"`
	Pool       PoolStats        `json:"pool"`

	// RecentFailures lists the newest events that could not be persisted,
	// newest first.
	RecentFailures []PersistenceFailure `json:"recent_failures,omitempty"`
}

// PersistenceFailure records an event that was dropped after the queue was
// full or every write attempt failed. Raw allows recovery by hand.
type PersistenceFailure struct {
	At        time.Time     `json:"at"`
	SessionID string        `json:"session_id,omitempty"`
	Sequence  uint64        `json:"sequence"`
	Kind      protocol.Kind `json:"kind"`
	Raw       string        `json:"raw"`
	Error     string        `json:"error"`
}
