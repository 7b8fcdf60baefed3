package unknown_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/internal/domain/unknown"
	. "github.com/smartystreets/goconvey/convey"
)

type memStore struct {
	mu      sync.Mutex
	records map[string]model.UnknownRecord
	failErr error
}

func newMemStore() *memStore {
	return &memStore{records: map[string]model.UnknownRecord{}}
}

func (m *memStore) UpsertUnknown(_ context.Context, rec model.UnknownRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if cur, ok := m.records[rec.PatternHash]; ok {
		cur.OccurrenceCount++
		cur.LastSeen = rec.LastSeen
		cur.RawPayload = rec.RawPayload
		m.records[rec.PatternHash] = cur
		return nil
	}
	m.records[rec.PatternHash] = rec
	return nil
}

func (m *memStore) AnnotateUnknown(_ context.Context, hash, kind, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[hash]
	if !ok {
		return errors.New("not found")
	}
	cur.SuggestedKind, cur.Notes = kind, notes
	m.records[hash] = cur
	return nil
}

func TestCollector(t *testing.T) {
	Convey("Given a collector over an in-memory store", t, func() {
		ctx := context.Background()
		store := newMemStore()
		c := unknown.New(store)
		first := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
		second := first.Add(time.Minute)

		Convey("When the same malformed payload arrives twice", func() {
			So(c.Collect(ctx, "zz9;garbage;1", first), ShouldBeNil)
			So(c.Collect(ctx, "zz9;garbage;1", second), ShouldBeNil)

			Convey("Then one record should exist with count 2", func() {
				So(store.records, ShouldHaveLength, 1)
				rec := store.records[protocol.Fingerprint("zz9;garbage;1")]
				So(rec.OccurrenceCount, ShouldEqual, int64(2))
				So(rec.FirstSeen, ShouldEqual, first)
				So(rec.LastSeen, ShouldEqual, second)
				So(rec.Pattern, ShouldEqual, "zz#;garbage;#")
			})
		})

		Convey("When payloads differ only in numbers", func() {
			So(c.Collect(ctx, "s11;3;s21;2", first), ShouldBeNil)
			So(c.Collect(ctx, "s12;0;s22;1", second), ShouldBeNil)

			Convey("Then they should aggregate and keep the sub-category", func() {
				So(store.records, ShouldHaveLength, 1)
				for _, rec := range store.records {
					So(rec.OccurrenceCount, ShouldEqual, int64(2))
					So(rec.SubCategory, ShouldEqual, "round_score")
					So(rec.RawPayload, ShouldEqual, "s12;0;s22;1")
				}
			})
		})

		Convey("When a record is annotated", func() {
			So(c.Collect(ctx, "ivr;1", first), ShouldBeNil)
			hash := protocol.Fingerprint("ivr;1")
			err := c.Annotate(ctx, hash, "video_replay", "seen on court 2")

			Convey("Then the classification should be stored", func() {
				So(err, ShouldBeNil)
				So(store.records[hash].SuggestedKind, ShouldEqual, "video_replay")
				So(store.records[hash].Notes, ShouldEqual, "seen on court 2")
			})

			Convey("And an empty hash should be rejected", func() {
				So(errors.Is(c.Annotate(ctx, " ", "x", ""), unknown.ErrInvalidAnnotation), ShouldBeTrue)
			})
		})

		Convey("When the store fails", func() {
			store.failErr = errors.New("disk full")
			err := c.Collect(ctx, "zz;1", first)

			Convey("Then the error should be wrapped", func() {
				So(errors.Is(err, unknown.ErrCollect), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "disk full")
			})
		})

		Convey("When no store is configured", func() {
			Convey("Then collect should fail fast", func() {
				So(errors.Is(unknown.New(nil).Collect(ctx, "x", first), unknown.ErrNoStore), ShouldBeTrue)
			})
		})
	})
}
