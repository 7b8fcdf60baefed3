package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/hogu/internal/domain/model"
)

const unknownColumns = `pattern_hash, pattern, raw_payload, sub_category, occurrence_count,
	first_seen, last_seen, suggested_kind, notes`

// UpsertUnknown inserts rec or bumps the existing record for its hash. The
// occurrence count only grows and last_seen never moves backwards.
func (s *SQLStore) UpsertUnknown(ctx context.Context, rec model.UnknownRecord) error {
	if strings.TrimSpace(rec.PatternHash) == "" {
		return fmt.Errorf("%w: empty pattern hash", ErrInvalidArgument)
	}
	if rec.OccurrenceCount < 1 {
		rec.OccurrenceCount = 1
	}
	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = s.now()
	}
	if rec.LastSeen.IsZero() {
		rec.LastSeen = rec.FirstSeen
	}
	q := fmt.Sprintf(`INSERT INTO unknown_events (`+unknownColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', '')
		ON CONFLICT (pattern_hash) DO UPDATE SET
			occurrence_count = unknown_events.occurrence_count + excluded.occurrence_count,
			last_seen = %s(unknown_events.last_seen, excluded.last_seen),
			raw_payload = excluded.raw_payload`, s.d.greatest)
	return s.withTx(ctx, func(tx *txScope) error {
		if _, err := tx.ExecContext(ctx, s.d.rebind(q),
			rec.PatternHash, rec.Pattern, rec.RawPayload, rec.SubCategory, rec.OccurrenceCount,
			toMicros(rec.FirstSeen), toMicros(rec.LastSeen),
		); err != nil {
			return fmt.Errorf("upsert unknown %s: %w", rec.PatternHash, err)
		}
		return nil
	})
}

// AnnotateUnknown records an external classification.
func (s *SQLStore) AnnotateUnknown(ctx context.Context, hash, suggestedKind, notes string) error {
	return s.withConn(ctx, func(conn *Conn) error {
		res, err := conn.ExecContext(ctx, s.d.rebind(`UPDATE unknown_events SET suggested_kind = ?, notes = ?
			WHERE pattern_hash = ?`), suggestedKind, notes, hash)
		if err != nil {
			return fmt.Errorf("annotate unknown %s: %w", hash, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("annotate unknown %s: %w", hash, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: unknown pattern %s", ErrNotFound, hash)
		}
		return nil
	})
}

// Unknown returns the record for hash.
func (s *SQLStore) Unknown(ctx context.Context, hash string) (model.UnknownRecord, error) {
	var rec model.UnknownRecord
	err := s.withConn(ctx, func(conn *Conn) error {
		row := conn.QueryRowContext(ctx, s.d.rebind(`SELECT `+unknownColumns+` FROM unknown_events WHERE pattern_hash = ?`), hash)
		var err error
		rec, err = scanUnknown(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown pattern %s", ErrNotFound, hash)
		}
		return err
	})
	return rec, err
}

// ListUnknown returns the most frequent unknown patterns first.
func (s *SQLStore) ListUnknown(ctx context.Context, limit int) ([]model.UnknownRecord, error) {
	var out []model.UnknownRecord
	err := s.withConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, s.d.rebind(`SELECT `+unknownColumns+` FROM unknown_events
			ORDER BY occurrence_count DESC, last_seen DESC LIMIT ?`), clampLimit(limit))
		if err != nil {
			return fmt.Errorf("query unknown events: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			rec, err := scanUnknown(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

func scanUnknown(r rowScanner) (model.UnknownRecord, error) {
	var (
		rec         model.UnknownRecord
		first, last int64
	)
	if err := r.Scan(&rec.PatternHash, &rec.Pattern, &rec.RawPayload, &rec.SubCategory, &rec.OccurrenceCount,
		&first, &last, &rec.SuggestedKind, &rec.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan unknown event: %w", err)
	}
	rec.FirstSeen, rec.LastSeen = fromMicros(first), fromMicros(last)
	return rec, nil
}
