// Package eventctx tracks the session, match, round and tournament context
// stamped onto ingested events.
package eventctx

import (
	"sync"

	"github.com/google/uuid"
)

// Context identifies where an event happened. Empty fields are unset.
type Context struct {
	SessionID       string `json:"session_id,omitempty"`
	MatchID         string `json:"match_id,omitempty"`
	RoundID         string `json:"round_id,omitempty"`
	TournamentID    string `json:"tournament_id,omitempty"`
	TournamentDayID string `json:"tournament_day_id,omitempty"`
}

// IsZero reports whether no field is set.
func (c Context) IsZero() bool { return c == Context{} }

// Update is a partial context change; nil fields are left untouched and a
// pointer to "" clears the field.
type Update struct {
	SessionID       *string `json:"session_id,omitempty"`
	MatchID         *string `json:"match_id,omitempty"`
	RoundID         *string `json:"round_id,omitempty"`
	TournamentID    *string `json:"tournament_id,omitempty"`
	TournamentDayID *string `json:"tournament_day_id,omitempty"`
}

// Value returns a pointer to s, for building Updates.
func Value(s string) *string { return &s }

// ChangeFunc is notified with the name of every field an update changed.
type ChangeFunc func(field string)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithOnChange registers a callback invoked outside the lock for every
// changed field.
func WithOnChange(fn ChangeFunc) Option {
	return func(t *Tracker) { t.onChange = fn }
}

// WithInitial seeds the tracker.
func WithInitial(c Context) Option {
	return func(t *Tracker) { t.cur = c }
}

// Tracker holds the current context and one sequence counter per session.
// Counters survive session switches, so a session that returns continues
// where it left off. All methods are safe for concurrent use; last write
// wins.
type Tracker struct {
	mu       sync.Mutex
	cur      Context
	seqs     map[string]uint64
	onChange ChangeFunc
}

// NewTracker creates a Tracker with configuration options.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{seqs: make(map[string]uint64)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set applies a partial update.
func (t *Tracker) Set(u Update) Context {
	t.mu.Lock()
	before := t.cur
	apply(&t.cur.SessionID, u.SessionID)
	apply(&t.cur.MatchID, u.MatchID)
	apply(&t.cur.RoundID, u.RoundID)
	apply(&t.cur.TournamentID, u.TournamentID)
	apply(&t.cur.TournamentDayID, u.TournamentDayID)
	after := t.cur
	t.mu.Unlock()

	t.notify(before, after)
	return after
}

// Current returns a snapshot of the context.
func (t *Tracker) Current() Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Clear unsets every field. Session counters are kept.
func (t *Tracker) Clear() {
	t.mu.Lock()
	before := t.cur
	t.cur = Context{}
	t.mu.Unlock()

	t.notify(before, Context{})
}

// EnsureSession starts a fresh uuid session when none is set and returns the
// active session id.
func (t *Tracker) EnsureSession() string {
	t.mu.Lock()
	if t.cur.SessionID != "" {
		id := t.cur.SessionID
		t.mu.Unlock()
		return id
	}
	before := t.cur
	t.cur.SessionID = uuid.NewString()
	after := t.cur
	t.mu.Unlock()

	t.notify(before, after)
	return after.SessionID
}

// MatchStarted records a new match and clears the round.
func (t *Tracker) MatchStarted(matchID string) {
	t.Set(Update{MatchID: Value(matchID), RoundID: Value("")})
}

// RoundStarted records the current round.
func (t *Tracker) RoundStarted(roundID string) {
	t.Set(Update{RoundID: Value(roundID)})
}

// Stamp returns the current context and the next sequence for its session
// under one lock. Sequences start at 1.
func (t *Tracker) Stamp() (Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seqs[t.cur.SessionID]++
	return t.cur, t.seqs[t.cur.SessionID]
}

// Sequence returns the last sequence handed out for the current session.
func (t *Tracker) Sequence() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seqs[t.cur.SessionID]
}

// Known reports whether session already has a counter.
func (t *Tracker) Known(session string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seqs[session]
	return ok
}

// Seed raises the counter of session to at least last, so the next stamp
// for it is above every stored sequence. It never lowers a counter.
func (t *Tracker) Seed(session string, last uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.seqs[session]; !ok || last > cur {
		t.seqs[session] = last
	}
}

func (t *Tracker) notify(before, after Context) {
	if t.onChange == nil {
		return
	}
	if before.SessionID != after.SessionID {
		t.onChange("session_id")
	}
	if before.MatchID != after.MatchID {
		t.onChange("match_id")
	}
	if before.RoundID != after.RoundID {
		t.onChange("round_id")
	}
	if before.TournamentID != after.TournamentID {
		t.onChange("tournament_id")
	}
	if before.TournamentDayID != after.TournamentDayID {
		t.onChange("tournament_day_id")
	}
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
