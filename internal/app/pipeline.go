package service

import (
	"context"
	"strconv"
	"time"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/metrics"
)

// HandleDatagram runs one datagram through the pipeline: parse, lifecycle
// signals, stamp, enrich, hand off to persistence, publish. It runs on the
// receive goroutine and never blocks on storage.
func (s *Service) HandleDatagram(ctx context.Context, raw string, receivedAt time.Time) {
	defer s.recoverDatagram(ctx, raw)

	s.received.Add(1)
	receivedAt = time.UnixMicro(receivedAt.UnixMicro())

	start := time.Now()
	ev := s.codec.Parse(raw, receivedAt)
	metrics.RecordParseLatency(float64(time.Since(start).Nanoseconds()) / 1000)
	metrics.RecordEventParsed(string(ev.Kind), string(ev.Status))

	s.applyLifecycle(ev)

	c, seq := s.tracker.Stamp()
	stored := model.StoredEvent{
		Event:    ev,
		Context:  c,
		Sequence: seq,
	}
	if p, ok := ev.Payload.(protocol.Point); ok {
		if e, ok := s.window.Enrich(p.Athlete, receivedAt); ok {
			stored.Enrichment = &e
			metrics.RecordEnrichment()
		}
	}
	now := time.Now()
	stored.ProcessingTime = now.Sub(receivedAt)
	stored.CreatedAt = time.UnixMicro(now.UnixMicro())

	// Failures are logged, counted and recorded in the status by the pool.
	_ = s.workers.Submit(ctx, stored)

	s.bus.Publish(stored)
	s.published.Add(1)
}

// applyLifecycle moves the context and correlation state along with the
// match flow before the event is stamped.
func (s *Service) applyLifecycle(ev protocol.Event) {
	switch p := ev.Payload.(type) {
	case protocol.MatchConfig:
		if p.Number != "" {
			s.tracker.MatchStarted(p.Number)
		}
	case protocol.Round:
		if p.Number > 0 {
			s.tracker.RoundStarted(strconv.Itoa(p.Number))
		}
	case protocol.FightLoaded, protocol.FightReady:
		s.window.ClearAll()
		metrics.RecordWindowReset()
	case protocol.HitLevel:
		if ev.Recognized() {
			s.window.Record(p.Athlete, p.Level, ev.ReceivedAt)
		}
	}
}
