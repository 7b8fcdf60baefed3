package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/adapters/udp"
	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
)

// Command surface. Every method recovers panics into ErrInternal.

// SetContext applies a partial context update and returns the result.
func (s *Service) SetContext(ctx context.Context, u eventctx.Update) (c eventctx.Context, err error) {
	defer s.recoverInto(ctx, "set context", &err)
	if u.SessionID != nil {
		if err := s.seedSession(ctx, *u.SessionID); err != nil {
			return s.tracker.Current(), err
		}
	}
	c = s.tracker.Set(u)
	s.logger.Info(ctx, "context updated",
		logger.String("session", c.SessionID),
		logger.String("match", c.MatchID),
		logger.String("round", c.RoundID),
	)
	return c, nil
}

// Context returns the current context, or ErrNoContext when none is set.
func (s *Service) Context(ctx context.Context) (c eventctx.Context, err error) {
	defer s.recoverInto(ctx, "get context", &err)
	c = s.tracker.Current()
	if c.IsZero() {
		return c, ErrNoContext
	}
	return c, nil
}

// ClearContext unsets every context field.
func (s *Service) ClearContext(ctx context.Context) (err error) {
	defer s.recoverInto(ctx, "clear context", &err)
	s.tracker.Clear()
	s.window.ClearAll()
	return nil
}

// StartIngestion binds the socket and starts receiving. A session id is
// created when none is set.
func (s *Service) StartIngestion(ctx context.Context) (err error) {
	defer s.recoverInto(ctx, "start ingestion", &err)
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}
	session := s.tracker.EnsureSession()
	if err := s.seedSession(ctx, session); err != nil {
		return err
	}
	if err := s.listener.Start(ctx); err != nil {
		return err
	}
	s.logger.Info(ctx, "ingestion started", logger.String("session", session))
	return nil
}

// seedSession continues the stored sequence of a session the tracker has not
// seen yet, so a returning or restarted session never reuses a sequence.
func (s *Service) seedSession(ctx context.Context, session string) error {
	if session == "" || s.tracker.Known(session) {
		return nil
	}
	last, err := s.store.LastSequence(ctx, session)
	if err != nil {
		return fmt.Errorf("seed session %s: %w", session, err)
	}
	s.tracker.Seed(session, last)
	return nil
}

// StopIngestion stops receiving. Queued events are still persisted.
func (s *Service) StopIngestion(ctx context.Context) (err error) {
	defer s.recoverInto(ctx, "stop ingestion", &err)
	return s.listener.Stop(ctx)
}

// IngestionState returns the listener state.
func (s *Service) IngestionState() udp.State {
	return s.listener.State()
}

// IngestionPort returns the bound UDP port while running.
func (s *Service) IngestionPort() int {
	return s.listener.Port()
}

// Events queries stored events.
func (s *Service) Events(ctx context.Context, f model.EventFilter) (evs []model.StoredEvent, err error) {
	defer s.recoverInto(ctx, "query events", &err)
	return s.store.Query(ctx, f)
}

// Event returns one stored event.
func (s *Service) Event(ctx context.Context, id int64) (ev model.StoredEvent, err error) {
	defer s.recoverInto(ctx, "get event", &err)
	return s.store.Get(ctx, id)
}

// UpdateStatus applies an audited manual status override.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status protocol.Status, by, reason string) (c model.StatusChange, err error) {
	defer s.recoverInto(ctx, "update status", &err)
	return s.store.UpdateStatus(ctx, id, status, by, reason)
}

// StatusHistory returns the overrides of one event.
func (s *Service) StatusHistory(ctx context.Context, id int64) (h []model.StatusChange, err error) {
	defer s.recoverInto(ctx, "status history", &err)
	return s.store.StatusHistory(ctx, id)
}

// Statistics returns processing aggregates for session, or all sessions.
func (s *Service) Statistics(ctx context.Context, session string) (st []model.Statistic, err error) {
	defer s.recoverInto(ctx, "statistics", &err)
	return s.store.Statistics(ctx, session)
}

// Unknown lists unknown payload patterns, most frequent first.
func (s *Service) Unknown(ctx context.Context, limit int) (recs []model.UnknownRecord, err error) {
	defer s.recoverInto(ctx, "list unknown", &err)
	return s.store.ListUnknown(ctx, limit)
}

// AnnotateUnknown classifies an unknown pattern.
func (s *Service) AnnotateUnknown(ctx context.Context, hash, suggestedKind, notes string) (err error) {
	defer s.recoverInto(ctx, "annotate unknown", &err)
	return s.collector.Annotate(ctx, hash, suggestedKind, notes)
}

// Rules returns validation rules filtered by kind and version.
func (s *Service) Rules(ctx context.Context, kind protocol.Kind, version string) (rules []protocol.Rule, err error) {
	defer s.recoverInto(ctx, "validation rules", &err)
	return s.store.ValidationRules(ctx, kind, version)
}

// Archive moves events older than days out of primary storage.
func (s *Service) Archive(ctx context.Context, days int) (n int64, err error) {
	defer s.recoverInto(ctx, "archive", &err)
	return s.store.ArchiveOlderThan(ctx, days)
}

// Restore moves archived events created in [start, end] back.
func (s *Service) Restore(ctx context.Context, start, end time.Time) (n int64, err error) {
	defer s.recoverInto(ctx, "restore", &err)
	return s.store.RestoreFromArchive(ctx, start, end)
}

// Subscribe attaches a live consumer to the bus.
func (s *Service) Subscribe(name string, size int) (*bus.Subscription, error) {
	return s.bus.Subscribe(name, size)
}
