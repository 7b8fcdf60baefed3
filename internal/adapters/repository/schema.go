package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
)

// eventColumns is shared by pss_events and pss_events_archive.
const eventColumns = `id, session_id, sequence, match_id, round_id, tournament_id, tournament_day_id,
	event_type_id, kind, code, status, confidence, sub_category, protocol_version, raw,
	validation_errors, received_at, processing_ns, created_at`

const detailColumns = `id, event_id, detail_key, detail_value, detail_type`

// Timestamps are stored as unix microseconds in BIGINT columns.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tournaments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tournament_days (
		id TEXT PRIMARY KEY,
		tournament_id TEXT REFERENCES tournaments(id),
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS athletes (
		id {{pk}},
		short_name TEXT NOT NULL,
		long_name TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		UNIQUE (short_name, country)
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id {{pk}},
		match_number TEXT NOT NULL UNIQUE,
		session_id TEXT,
		category TEXT NOT NULL DEFAULT '',
		weight TEXT NOT NULL DEFAULT '',
		rounds INTEGER NOT NULL DEFAULT 0,
		bg_color TEXT NOT NULL DEFAULT '',
		fg_color TEXT NOT NULL DEFAULT '',
		blue_athlete_id BIGINT REFERENCES athletes(id),
		red_athlete_id BIGINT REFERENCES athletes(id),
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rounds (
		id {{pk}},
		match_number TEXT NOT NULL,
		round_number INTEGER NOT NULL,
		started_at BIGINT NOT NULL,
		UNIQUE (match_number, round_number)
	)`,
	`CREATE TABLE IF NOT EXISTS event_types (
		id {{pk}},
		kind TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS pss_events (
		id {{pk}},
		session_id TEXT,
		sequence BIGINT NOT NULL,
		match_id TEXT,
		round_id TEXT,
		tournament_id TEXT,
		tournament_day_id TEXT,
		event_type_id BIGINT REFERENCES event_types(id),
		kind TEXT NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		confidence {{float}} NOT NULL,
		sub_category TEXT NOT NULL DEFAULT '',
		protocol_version TEXT NOT NULL,
		raw TEXT NOT NULL,
		validation_errors TEXT NOT NULL DEFAULT '[]',
		received_at BIGINT NOT NULL,
		processing_ns BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE (session_id, sequence)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_events_created_at ON pss_events(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_events_status ON pss_events(status)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_events_kind ON pss_events(kind)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_events_match_id ON pss_events(match_id)`,
	`CREATE TABLE IF NOT EXISTS pss_event_details (
		id {{pk}},
		event_id BIGINT NOT NULL REFERENCES pss_events(id),
		detail_key TEXT NOT NULL,
		detail_value TEXT NOT NULL,
		detail_type TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_event_details_event_id ON pss_event_details(event_id)`,
	`CREATE TABLE IF NOT EXISTS event_status_history (
		id {{pk}},
		event_id BIGINT NOT NULL,
		old_status TEXT NOT NULL,
		new_status TEXT NOT NULL,
		changed_by TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		changed_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_event_status_history_event_id ON event_status_history(event_id)`,
	`CREATE TABLE IF NOT EXISTS validation_rules (
		id {{pk}},
		event_kind TEXT NOT NULL,
		protocol_version TEXT NOT NULL,
		rule_kind TEXT NOT NULL,
		field TEXT NOT NULL,
		definition TEXT NOT NULL,
		error_message TEXT NOT NULL,
		UNIQUE (event_kind, protocol_version, rule_kind, field)
	)`,
	`CREATE TABLE IF NOT EXISTS unknown_events (
		id {{pk}},
		pattern_hash TEXT NOT NULL UNIQUE,
		pattern TEXT NOT NULL,
		raw_payload TEXT NOT NULL,
		sub_category TEXT NOT NULL DEFAULT '',
		occurrence_count BIGINT NOT NULL,
		first_seen BIGINT NOT NULL,
		last_seen BIGINT NOT NULL,
		suggested_kind TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS event_statistics (
		session_id TEXT NOT NULL,
		protocol_version TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		event_count BIGINT NOT NULL,
		total_us BIGINT NOT NULL,
		min_us BIGINT NOT NULL,
		max_us BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (session_id, protocol_version, kind, status)
	)`,
	`CREATE TABLE IF NOT EXISTS pss_events_archive (
		id BIGINT PRIMARY KEY,
		session_id TEXT,
		sequence BIGINT NOT NULL,
		match_id TEXT,
		round_id TEXT,
		tournament_id TEXT,
		tournament_day_id TEXT,
		event_type_id BIGINT,
		kind TEXT NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		confidence {{float}} NOT NULL,
		sub_category TEXT NOT NULL DEFAULT '',
		protocol_version TEXT NOT NULL,
		raw TEXT NOT NULL,
		validation_errors TEXT NOT NULL DEFAULT '[]',
		received_at BIGINT NOT NULL,
		processing_ns BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		archived_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_events_archive_created_at ON pss_events_archive(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_events_archive_session ON pss_events_archive(session_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS pss_event_details_archive (
		id BIGINT PRIMARY KEY,
		event_id BIGINT NOT NULL,
		detail_key TEXT NOT NULL,
		detail_value TEXT NOT NULL,
		detail_type TEXT NOT NULL,
		archived_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pss_event_details_archive_event_id ON pss_event_details_archive(event_id)`,
}

func (d dialect) schema() []string {
	r := strings.NewReplacer("{{pk}}", d.serialPK, "{{float}}", d.float)
	out := make([]string, len(migrations))
	for i, m := range migrations {
		out[i] = r.Replace(m)
	}
	return out
}

// Migrate creates the schema and seeds event types and validation rules.
// It is idempotent.
func (s *SQLStore) Migrate(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *txScope) error {
		for _, stmt := range s.d.schema() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", firstLine(stmt), err)
			}
		}
		for _, k := range protocol.Kinds() {
			id, err := s.upsertEventType(ctx, tx, k)
			if err != nil {
				return err
			}
			tx.afterCommit(func() { s.eventTypes.put(string(k), id) })
		}
		return s.seedRules(ctx, tx.Tx, s.codec.Rules())
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	s.log.Info(ctx, "schema migrated", logger.String("driver", s.d.name))
	return nil
}

func (s *SQLStore) seedRules(ctx context.Context, tx *sql.Tx, rules []protocol.Rule) error {
	q := s.d.rebind(`INSERT INTO validation_rules
		(event_kind, protocol_version, rule_kind, field, definition, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_kind, protocol_version, rule_kind, field) DO NOTHING`)
	for _, r := range rules {
		if _, err := tx.ExecContext(ctx, q,
			string(r.EventKind), r.ProtocolVersion, string(r.RuleKind), r.Field, r.Definition, r.ErrorMessage,
		); err != nil {
			return fmt.Errorf("seed rule %s/%s: %w", r.EventKind, r.Field, err)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
