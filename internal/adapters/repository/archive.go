package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

const day = 24 * time.Hour

// ArchiveOlderThan moves events created more than days ago out of primary
// storage.
func (s *SQLStore) ArchiveOlderThan(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("%w: days must not be negative", ErrInvalidArgument)
	}
	return s.ArchiveBefore(ctx, s.now().Add(-time.Duration(days)*day))
}

// ArchiveBefore moves events with created_at before cutoff, and their
// details, into the archive tables in one transaction. Rows already archived
// are left as they are, so repeating a run moves nothing.
func (s *SQLStore) ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	at, before := toMicros(s.now()), toMicros(cutoff)
	var moved int64
	err := s.withTx(ctx, func(tx *txScope) error {
		steps := []struct {
			name string
			q    string
			args []any
		}{
			{"copy details", `INSERT INTO pss_event_details_archive (` + detailColumns + `, archived_at)
				SELECT ` + detailColumns + `, ? FROM pss_event_details
				WHERE event_id IN (SELECT id FROM pss_events WHERE created_at < ?)
				ON CONFLICT DO NOTHING`, []any{at, before}},
			{"copy events", `INSERT INTO pss_events_archive (` + eventColumns + `, archived_at)
				SELECT ` + eventColumns + `, ? FROM pss_events WHERE created_at < ?
				ON CONFLICT DO NOTHING`, []any{at, before}},
			{"delete details", `DELETE FROM pss_event_details
				WHERE event_id IN (SELECT id FROM pss_events WHERE created_at < ?
					AND id IN (SELECT id FROM pss_events_archive))`, []any{before}},
		}
		for _, st := range steps {
			if _, err := tx.ExecContext(ctx, s.d.rebind(st.q), st.args...); err != nil {
				return fmt.Errorf("archive: %s: %w", st.name, err)
			}
		}
		// Only rows that reached the archive leave primary storage.
		res, err := tx.ExecContext(ctx, s.d.rebind(`DELETE FROM pss_events WHERE created_at < ?
			AND id IN (SELECT id FROM pss_events_archive)`), before)
		if err != nil {
			return fmt.Errorf("archive: delete events: %w", err)
		}
		moved, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.RecordArchived(moved)
	if moved > 0 {
		s.log.Info(ctx, "events archived", logger.Int64("count", moved), logger.String("cutoff", cutoff.UTC().Format(time.RFC3339)))
	}
	return moved, nil
}

// RestoreFromArchive moves archived events created in [start, end] back into
// primary storage with their original ids.
func (s *SQLStore) RestoreFromArchive(ctx context.Context, start, end time.Time) (int64, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: end before start", ErrInvalidArgument)
	}
	from, to := toMicros(start), toMicros(end)
	var restored int64
	err := s.withTx(ctx, func(tx *txScope) error {
		res, err := tx.ExecContext(ctx, s.d.rebind(`INSERT INTO pss_events (`+eventColumns+`)
			SELECT `+eventColumns+` FROM pss_events_archive WHERE created_at BETWEEN ? AND ?
			ON CONFLICT DO NOTHING`), from, to)
		if err != nil {
			return fmt.Errorf("restore: copy events: %w", err)
		}
		if restored, err = res.RowsAffected(); err != nil {
			return err
		}
		// A row skipped on a (session_id, sequence) conflict stays archived;
		// only ids that landed in pss_events are moved.
		const landed = `SELECT id FROM pss_events_archive WHERE created_at BETWEEN ? AND ?
			AND id IN (SELECT id FROM pss_events)`
		steps := []struct {
			name string
			q    string
		}{
			{"copy details", `INSERT INTO pss_event_details (` + detailColumns + `)
				SELECT ` + detailColumns + ` FROM pss_event_details_archive
				WHERE event_id IN (` + landed + `)
				ON CONFLICT DO NOTHING`},
			{"delete details", `DELETE FROM pss_event_details_archive WHERE event_id IN (` + landed + `)`},
			{"delete events", `DELETE FROM pss_events_archive WHERE created_at BETWEEN ? AND ?
				AND id IN (SELECT id FROM pss_events)`},
		}
		for _, st := range steps {
			if _, err := tx.ExecContext(ctx, s.d.rebind(st.q), from, to); err != nil {
				return fmt.Errorf("restore: %s: %w", st.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	metrics.RecordRestored(restored)
	s.log.Info(ctx, "events restored", logger.Int64("count", restored))
	return restored, nil
}

// RunArchiver archives events older than days every interval until ctx is
// done. Failures are logged and retried on the next tick.
func (s *SQLStore) RunArchiver(ctx context.Context, interval time.Duration, days int) {
	if interval <= 0 || days <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.ArchiveOlderThan(ctx, days); err != nil {
				s.log.Error(ctx, "scheduled archive failed", logger.Error(err))
			}
		}
	}
}
