package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
)

// UpdateStatistics increments the aggregate for one processed event.
func (s *SQLStore) UpdateStatistics(ctx context.Context, session, version string, kind protocol.Kind, status protocol.Status, elapsed time.Duration) error {
	return s.withTx(ctx, func(tx *txScope) error {
		return s.upsertStatistics(ctx, tx.Tx, session, version, kind, status, elapsed, s.now())
	})
}

func (s *SQLStore) upsertStatistics(ctx context.Context, tx *sql.Tx, session, version string, kind protocol.Kind, status protocol.Status, elapsed time.Duration, at time.Time) error {
	us := elapsed.Microseconds()
	q := fmt.Sprintf(`INSERT INTO event_statistics
		(session_id, protocol_version, kind, status, event_count, total_us, min_us, max_us, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT (session_id, protocol_version, kind, status) DO UPDATE SET
			event_count = event_statistics.event_count + 1,
			total_us = event_statistics.total_us + excluded.total_us,
			min_us = %s(event_statistics.min_us, excluded.min_us),
			max_us = %s(event_statistics.max_us, excluded.max_us),
			updated_at = excluded.updated_at`, s.d.least, s.d.greatest)
	if _, err := tx.ExecContext(ctx, s.d.rebind(q),
		session, version, string(kind), string(status), us, us, us, toMicros(at),
	); err != nil {
		return fmt.Errorf("upsert statistics: %w", err)
	}
	return nil
}

// Statistics returns aggregates for session, or for all sessions when empty.
func (s *SQLStore) Statistics(ctx context.Context, session string) ([]model.Statistic, error) {
	q := `SELECT session_id, protocol_version, kind, status, event_count, total_us, min_us, max_us
		FROM event_statistics`
	var args []any
	if session != "" {
		q += ` WHERE session_id = ?`
		args = append(args, session)
	}
	q += ` ORDER BY session_id, protocol_version, kind, status`

	var out []model.Statistic
	err := s.withConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, s.d.rebind(q), args...)
		if err != nil {
			return fmt.Errorf("query statistics: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				st           model.Statistic
				kind, status string
			)
			if err := rows.Scan(&st.SessionID, &st.ProtocolVersion, &kind, &status,
				&st.Count, &st.TotalMicros, &st.MinMicros, &st.MaxMicros); err != nil {
				return fmt.Errorf("scan statistics: %w", err)
			}
			st.Kind, st.Status = protocol.Kind(kind), protocol.Status(status)
			out = append(out, st)
		}
		return rows.Err()
	})
	return out, err
}
