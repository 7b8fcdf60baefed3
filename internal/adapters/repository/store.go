// Package repository persists PSS events, their audit trail, statistics and
// unknown-payload aggregates in SQLite or PostgreSQL.
package repository

import (
	"context"
	"time"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
)

// Store provides durable access to ingested events.
type Store interface {
	// Store writes one event with its details and statistics in one
	// transaction and returns the assigned id.
	Store(ctx context.Context, ev model.StoredEvent) (int64, error)
	// StoreBatch stores events in order, one transaction each, stopping at the
	// first failure. It returns the ids stored so far.
	StoreBatch(ctx context.Context, evs []model.StoredEvent) ([]int64, error)

	Get(ctx context.Context, id int64) (model.StoredEvent, error)
	Query(ctx context.Context, f model.EventFilter) ([]model.StoredEvent, error)
	QueryByStatus(ctx context.Context, status protocol.Status, limit int) ([]model.StoredEvent, error)
	Count(ctx context.Context) (int64, error)
	// LastSequence returns the highest sequence ever stored for session.
	LastSequence(ctx context.Context, session string) (uint64, error)

	// UpdateStatus overrides an event status and appends a history entry.
	UpdateStatus(ctx context.Context, id int64, status protocol.Status, by, reason string) (model.StatusChange, error)
	StatusHistory(ctx context.Context, id int64) ([]model.StatusChange, error)

	UpsertUnknown(ctx context.Context, rec model.UnknownRecord) error
	AnnotateUnknown(ctx context.Context, hash, suggestedKind, notes string) error
	Unknown(ctx context.Context, hash string) (model.UnknownRecord, error)
	ListUnknown(ctx context.Context, limit int) ([]model.UnknownRecord, error)

	ValidationRules(ctx context.Context, kind protocol.Kind, version string) ([]protocol.Rule, error)

	UpdateStatistics(ctx context.Context, session, version string, kind protocol.Kind, status protocol.Status, elapsed time.Duration) error
	Statistics(ctx context.Context, session string) ([]model.Statistic, error)

	// ArchiveOlderThan moves events created more than days ago into the
	// archive tables and returns how many events moved.
	ArchiveOlderThan(ctx context.Context, days int) (int64, error)
	// RestoreFromArchive moves archived events created in [start, end] back.
	RestoreFromArchive(ctx context.Context, start, end time.Time) (int64, error)

	PoolStats() model.PoolStats
	Migrate(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLStore)(nil)
