package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
)

// Query limits.
const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 10_000
)

// SQLStore implements Store over database/sql with its own connection pool.
type SQLStore struct {
	d        dialect
	pool     *Pool
	poolOpts []PoolOption
	codec    *protocol.Codec
	log      logger.Logger
	now      func() time.Time

	eventTypes *lookupCache
	athletes   *lookupCache
	seen       *lookupCache // tournaments and tournament days already written
}

// Open connects to driver/dsn and builds the pool. Call Migrate before use on
// a fresh database.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{
		d:          d,
		codec:      protocol.New(),
		log:        logger.Named("repository"),
		now:        func() time.Time { return time.UnixMicro(time.Now().UnixMicro()) },
		eventTypes: newLookupCache(),
		athletes:   newLookupCache(),
		seen:       newLookupCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	poolOpts := append([]PoolOption{WithConnFunc(d.onConnect)}, s.poolOpts...)
	s.pool = NewPool(db, poolOpts...)
	return s, nil
}

// Close releases the pool and database.
func (s *SQLStore) Close() error {
	return s.pool.Close()
}

// PoolStats reports connection pool occupancy.
func (s *SQLStore) PoolStats() model.PoolStats {
	return s.pool.Stats()
}

// Driver returns the dialect name.
func (s *SQLStore) Driver() string { return s.d.name }

// txScope is a transaction plus callbacks run only after a successful commit.
type txScope struct {
	*sql.Tx
	hooks []func()
}

func (t *txScope) afterCommit(fn func()) { t.hooks = append(t.hooks, fn) }

func (s *SQLStore) withConn(ctx context.Context, fn func(conn *Conn) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if err := fn(conn); err != nil {
		if isBadConn(err) {
			conn.MarkBad()
		}
		return err
	}
	return nil
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *txScope) error) error {
	return s.withConn(ctx, func(conn *Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		scope := &txScope{Tx: tx}
		if err := fn(scope); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		for _, h := range scope.hooks {
			h()
		}
		return nil
	})
}

// Store writes the event row, its detail rows, the statistics increment and
// any match bookkeeping in one transaction.
func (s *SQLStore) Store(ctx context.Context, ev model.StoredEvent) (int64, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	var id int64
	err := s.withTx(ctx, func(tx *txScope) error {
		var err error
		if id, err = s.insertEvent(ctx, tx, ev); err != nil {
			return err
		}
		if err := s.insertDetails(ctx, tx.Tx, id, ev); err != nil {
			return err
		}
		if err := s.upsertStatistics(ctx, tx.Tx, ev.Context.SessionID, ev.ProtocolVersion,
			ev.Kind, ev.Status, ev.ProcessingTime, ev.CreatedAt); err != nil {
			return err
		}
		return s.applyLifecycle(ctx, tx, ev)
	})
	if err != nil {
		return 0, fmt.Errorf("%w: event %s#%d: %w", ErrPersistence, ev.Context.SessionID, ev.Sequence, err)
	}
	return id, nil
}

// StoreBatch stores events sequentially, one transaction each.
func (s *SQLStore) StoreBatch(ctx context.Context, evs []model.StoredEvent) ([]int64, error) {
	ids := make([]int64, 0, len(evs))
	for _, ev := range evs {
		id, err := s.Store(ctx, ev)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *SQLStore) insertEvent(ctx context.Context, tx *txScope, ev model.StoredEvent) (int64, error) {
	typeID, err := s.eventTypeID(ctx, tx, ev.Kind)
	if err != nil {
		return 0, err
	}
	errs := ev.ValidationErrors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return 0, fmt.Errorf("encode validation errors: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, s.d.rebind(`INSERT INTO pss_events (
			session_id, sequence, match_id, round_id, tournament_id, tournament_day_id,
			event_type_id, kind, code, status, confidence, sub_category, protocol_version, raw,
			validation_errors, received_at, processing_ns, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		nullString(ev.Context.SessionID), int64(ev.Sequence), nullString(ev.Context.MatchID),
		nullString(ev.Context.RoundID), nullString(ev.Context.TournamentID), nullString(ev.Context.TournamentDayID),
		typeID, string(ev.Kind), ev.Code, string(ev.Status), ev.Confidence, ev.SubCategory, ev.ProtocolVersion, ev.Raw,
		string(errsJSON), toMicros(ev.ReceivedAt), int64(ev.ProcessingTime), toMicros(ev.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (s *SQLStore) eventTypeID(ctx context.Context, tx *txScope, kind protocol.Kind) (int64, error) {
	if id, ok := s.eventTypes.get(string(kind)); ok {
		return id, nil
	}
	id, err := s.upsertEventType(ctx, tx, kind)
	if err != nil {
		return 0, err
	}
	tx.afterCommit(func() { s.eventTypes.put(string(kind), id) })
	return id, nil
}

func (s *SQLStore) upsertEventType(ctx context.Context, tx *txScope, kind protocol.Kind) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.d.rebind(`INSERT INTO event_types (kind, description) VALUES (?, ?)
		ON CONFLICT (kind) DO UPDATE SET kind = excluded.kind RETURNING id`),
		string(kind), strings.ReplaceAll(string(kind), "_", " "),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert event type %s: %w", kind, err)
	}
	return id, nil
}

func (s *SQLStore) insertDetails(ctx context.Context, tx *sql.Tx, eventID int64, ev model.StoredEvent) error {
	details := append(payloadDetails(ev.Payload), enrichmentDetails(ev.Enrichment)...)
	if len(details) == 0 {
		return nil
	}
	q := s.d.rebind(`INSERT INTO pss_event_details (event_id, detail_key, detail_value, detail_type) VALUES (?, ?, ?, ?)`)
	for _, d := range details {
		if _, err := tx.ExecContext(ctx, q, eventID, d.key, d.value, d.typ); err != nil {
			return fmt.Errorf("insert detail %s: %w", d.key, err)
		}
	}
	return nil
}

// applyLifecycle keeps the match, round, athlete and tournament tables in
// step with the stream.
func (s *SQLStore) applyLifecycle(ctx context.Context, tx *txScope, ev model.StoredEvent) error {
	if err := s.ensureTournament(ctx, tx, ev.Context); err != nil {
		return err
	}
	now := toMicros(ev.CreatedAt)

	switch p := ev.Payload.(type) {
	case protocol.MatchConfig:
		if p.Number == "" {
			return nil
		}
		_, err := tx.ExecContext(ctx, s.d.rebind(`INSERT INTO matches
			(match_number, session_id, category, weight, rounds, bg_color, fg_color, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (match_number) DO UPDATE SET
				session_id = excluded.session_id, category = excluded.category, weight = excluded.weight,
				rounds = excluded.rounds, bg_color = excluded.bg_color, fg_color = excluded.fg_color,
				updated_at = excluded.updated_at`),
			p.Number, nullString(ev.Context.SessionID), p.Category, p.Weight, p.Rounds, p.BgColor, p.FgColor, now, now)
		if err != nil {
			return fmt.Errorf("upsert match %s: %w", p.Number, err)
		}
	case protocol.Athletes:
		blue, err := s.athleteID(ctx, tx, p.Blue, now)
		if err != nil {
			return err
		}
		red, err := s.athleteID(ctx, tx, p.Red, now)
		if err != nil {
			return err
		}
		if ev.Context.MatchID == "" {
			return nil
		}
		_, err = tx.ExecContext(ctx, s.d.rebind(`INSERT INTO matches
			(match_number, session_id, blue_athlete_id, red_athlete_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (match_number) DO UPDATE SET
				blue_athlete_id = excluded.blue_athlete_id, red_athlete_id = excluded.red_athlete_id,
				updated_at = excluded.updated_at`),
			ev.Context.MatchID, nullString(ev.Context.SessionID), blue, red, now, now)
		if err != nil {
			return fmt.Errorf("link athletes to match %s: %w", ev.Context.MatchID, err)
		}
	case protocol.Round:
		if ev.Context.MatchID == "" || p.Number < 1 {
			return nil
		}
		_, err := tx.ExecContext(ctx, s.d.rebind(`INSERT INTO rounds (match_number, round_number, started_at)
			VALUES (?, ?, ?) ON CONFLICT (match_number, round_number) DO NOTHING`),
			ev.Context.MatchID, p.Number, now)
		if err != nil {
			return fmt.Errorf("insert round %s/%d: %w", ev.Context.MatchID, p.Number, err)
		}
	}
	return nil
}

// athleteID returns the row id for info, or NULL when the short name is empty.
func (s *SQLStore) athleteID(ctx context.Context, tx *txScope, info protocol.AthleteInfo, now int64) (sql.NullInt64, error) {
	if info.Short == "" {
		return sql.NullInt64{}, nil
	}
	key := info.Short + "|" + info.Country + "|" + info.Long
	if id, ok := s.athletes.get(key); ok {
		return sql.NullInt64{Int64: id, Valid: true}, nil
	}
	var id int64
	err := tx.QueryRowContext(ctx, s.d.rebind(`INSERT INTO athletes (short_name, long_name, country, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (short_name, country) DO UPDATE SET long_name = excluded.long_name RETURNING id`),
		info.Short, info.Long, info.Country, now,
	).Scan(&id)
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("upsert athlete %s: %w", info.Short, err)
	}
	tx.afterCommit(func() { s.athletes.put(key, id) })
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func (s *SQLStore) ensureTournament(ctx context.Context, tx *txScope, c eventctx.Context) error {
	now := toMicros(s.now())
	if c.TournamentID != "" {
		key := "t|" + c.TournamentID
		if _, ok := s.seen.get(key); !ok {
			if _, err := tx.ExecContext(ctx, s.d.rebind(`INSERT INTO tournaments (id, created_at) VALUES (?, ?)
				ON CONFLICT (id) DO NOTHING`), c.TournamentID, now); err != nil {
				return fmt.Errorf("insert tournament %s: %w", c.TournamentID, err)
			}
			tx.afterCommit(func() { s.seen.put(key, 0) })
		}
	}
	if c.TournamentDayID != "" {
		key := "d|" + c.TournamentDayID
		if _, ok := s.seen.get(key); !ok {
			if _, err := tx.ExecContext(ctx, s.d.rebind(`INSERT INTO tournament_days (id, tournament_id, created_at)
				VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`),
				c.TournamentDayID, nullString(c.TournamentID), now); err != nil {
				return fmt.Errorf("insert tournament day %s: %w", c.TournamentDayID, err)
			}
			tx.afterCommit(func() { s.seen.put(key, 0) })
		}
	}
	return nil
}

// Get returns one event by id.
func (s *SQLStore) Get(ctx context.Context, id int64) (model.StoredEvent, error) {
	var out model.StoredEvent
	err := s.withConn(ctx, func(conn *Conn) error {
		row := conn.QueryRowContext(ctx, s.d.rebind(`SELECT `+eventColumns+` FROM pss_events WHERE id = ?`), id)
		ev, err := s.scanEvent(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: event %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		evs := []model.StoredEvent{ev}
		if err := s.loadEnrichment(ctx, conn, evs); err != nil {
			return err
		}
		out = evs[0]
		return nil
	})
	return out, err
}

// Query returns events matching f ordered by id.
func (s *SQLStore) Query(ctx context.Context, f model.EventFilter) ([]model.StoredEvent, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		where = append(where, cond)
		args = append(args, v)
	}
	if f.SessionID != "" {
		add("session_id = ?", f.SessionID)
	}
	if f.MatchID != "" {
		add("match_id = ?", f.MatchID)
	}
	if f.Kind != "" {
		add("kind = ?", string(f.Kind))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if !f.Since.IsZero() {
		add("created_at >= ?", toMicros(f.Since))
	}
	if !f.Until.IsZero() {
		add("created_at <= ?", toMicros(f.Until))
	}

	q := `SELECT ` + eventColumns + ` FROM pss_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Descending {
		q += " ORDER BY id DESC"
	} else {
		q += " ORDER BY id ASC"
	}
	q += " LIMIT ?"
	args = append(args, clampLimit(f.Limit))

	var out []model.StoredEvent
	err := s.withConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, s.d.rebind(q), args...)
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			ev, err := s.scanEvent(rows)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate events: %w", err)
		}
		_ = rows.Close()
		return s.loadEnrichment(ctx, conn, out)
	})
	return out, err
}

// QueryByStatus returns the oldest events with the given status.
func (s *SQLStore) QueryByStatus(ctx context.Context, status protocol.Status, limit int) ([]model.StoredEvent, error) {
	return s.Query(ctx, model.EventFilter{Status: status, Limit: limit})
}

// Count returns the number of events in primary storage.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.withConn(ctx, func(conn *Conn) error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM pss_events`).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// LastSequence returns the highest sequence stored for session, archived
// events included, or 0 when the session has none.
func (s *SQLStore) LastSequence(ctx context.Context, session string) (uint64, error) {
	var n int64
	err := s.withConn(ctx, func(conn *Conn) error {
		return conn.QueryRowContext(ctx, s.d.rebind(`SELECT COALESCE(MAX(seq), 0) FROM (
			SELECT MAX(sequence) AS seq FROM pss_events WHERE session_id = ?
			UNION ALL
			SELECT MAX(sequence) AS seq FROM pss_events_archive WHERE session_id = ?
		) AS last`), session, session).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("last sequence of %q: %w", session, err)
	}
	return uint64(n), nil
}

// UpdateStatus applies a manual status override and appends it to history.
func (s *SQLStore) UpdateStatus(ctx context.Context, id int64, status protocol.Status, by, reason string) (model.StatusChange, error) {
	if _, err := protocol.ParseStatus(string(status)); err != nil {
		return model.StatusChange{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if strings.TrimSpace(by) == "" {
		return model.StatusChange{}, fmt.Errorf("%w: changed_by is required", ErrInvalidArgument)
	}
	change := model.StatusChange{EventID: id, NewStatus: status, ChangedBy: by, Reason: reason, ChangedAt: s.now()}

	err := s.withTx(ctx, func(tx *txScope) error {
		var old string
		err := tx.QueryRowContext(ctx, s.d.rebind(`SELECT status FROM pss_events WHERE id = ?`), id).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: event %d", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		change.OldStatus = protocol.Status(old)
		if _, err := tx.ExecContext(ctx, s.d.rebind(`UPDATE pss_events SET status = ? WHERE id = ?`), string(status), id); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.d.rebind(`INSERT INTO event_status_history
			(event_id, old_status, new_status, changed_by, reason, changed_at) VALUES (?, ?, ?, ?, ?, ?)`),
			id, old, string(status), by, reason, toMicros(change.ChangedAt))
		if err != nil {
			return fmt.Errorf("append status history: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.StatusChange{}, err
	}
	s.log.Info(ctx, "event status overridden",
		logger.Int64("event_id", id),
		logger.String("old_status", string(change.OldStatus)),
		logger.String("new_status", string(status)),
		logger.String("changed_by", by),
	)
	return change, nil
}

// StatusHistory returns overrides for id, oldest first.
func (s *SQLStore) StatusHistory(ctx context.Context, id int64) ([]model.StatusChange, error) {
	var out []model.StatusChange
	err := s.withConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, s.d.rebind(`SELECT event_id, old_status, new_status, changed_by, reason, changed_at
			FROM event_status_history WHERE event_id = ? ORDER BY id ASC`), id)
		if err != nil {
			return fmt.Errorf("query status history: %w", err)
		}
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			var (
				c          model.StatusChange
				oldS, newS string
				at         int64
			)
			if err := rows.Scan(&c.EventID, &oldS, &newS, &c.ChangedBy, &c.Reason, &at); err != nil {
				return fmt.Errorf("scan status history: %w", err)
			}
			c.OldStatus, c.NewStatus, c.ChangedAt = protocol.Status(oldS), protocol.Status(newS), fromMicros(at)
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one eventColumns row. The payload is rebuilt by reparsing
// the raw text; status, confidence and errors come from the row since they
// may have been overridden.
func (s *SQLStore) scanEvent(r rowScanner) (model.StoredEvent, error) {
	var (
		id, seq, recv, procNs, created                         int64
		session, match, round, tournament, day                  sql.NullString
		typeID                                                  sql.NullInt64
		kind, code, status, subCategory, version, raw, errsJSON string
		confidence                                              float64
	)
	if err := r.Scan(&id, &session, &seq, &match, &round, &tournament, &day, &typeID,
		&kind, &code, &status, &confidence, &subCategory, &version, &raw, &errsJSON,
		&recv, &procNs, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StoredEvent{}, err
		}
		return model.StoredEvent{}, fmt.Errorf("scan event: %w", err)
	}

	ev := s.codec.Parse(raw, fromMicros(recv))
	ev.Kind = protocol.Kind(kind)
	ev.Code = code
	ev.Status = protocol.Status(status)
	ev.Confidence = confidence
	ev.SubCategory = subCategory
	ev.ProtocolVersion = version
	ev.ValidationErrors = decodeErrors(errsJSON)

	return model.StoredEvent{
		ID:    id,
		Event: ev,
		Context: eventctx.Context{
			SessionID:       session.String,
			MatchID:         match.String,
			RoundID:         round.String,
			TournamentID:    tournament.String,
			TournamentDayID: day.String,
		},
		Sequence:       uint64(seq),
		ProcessingTime: time.Duration(procNs),
		CreatedAt:      fromMicros(created),
	}, nil
}

// loadEnrichment attaches hit-level enrichment from detail rows.
func (s *SQLStore) loadEnrichment(ctx context.Context, conn *Conn, evs []model.StoredEvent) error {
	if len(evs) == 0 {
		return nil
	}
	index := make(map[int64]int, len(evs))
	args := make([]any, 0, len(evs)+1)
	args = append(args, detailHitLevels)
	for i, ev := range evs {
		index[ev.ID] = i
		args = append(args, ev.ID)
	}
	rows, err := conn.QueryContext(ctx, s.d.rebind(`SELECT event_id, detail_value FROM pss_event_details
		WHERE detail_key = ? AND event_id IN (`+placeholders(len(evs))+`)`), args...)
	if err != nil {
		return fmt.Errorf("query enrichment: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			eventID int64
			value   string
		)
		if err := rows.Scan(&eventID, &value); err != nil {
			return fmt.Errorf("scan enrichment: %w", err)
		}
		if e, ok := decodeEnrichment(value); ok {
			evs[index[eventID]].Enrichment = &e
		}
	}
	return rows.Err()
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultQueryLimit
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// toMicros returns 0 for the zero time so it reads back as time.Time{}.
func toMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v)
}

func decodeErrors(s string) []string {
	var errs []string
	if err := json.Unmarshal([]byte(s), &errs); err != nil || len(errs) == 0 {
		return nil
	}
	return errs
}
