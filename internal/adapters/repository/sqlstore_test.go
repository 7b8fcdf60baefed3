package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/hogu/internal/domain/correlation"
	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

func openTestStore(t *testing.T, opts ...Option) *SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "hogu.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

// micros truncates to the storage resolution.
func micros(t time.Time) time.Time { return time.UnixMicro(t.UnixMicro()) }

func storedEvent(raw string, seq uint64, created time.Time) model.StoredEvent {
	recv := micros(created)
	return model.StoredEvent{
		Event:          protocol.Parse(raw, recv),
		Context:        eventctx.Context{SessionID: "s-1", MatchID: "101", RoundID: "1"},
		Sequence:       seq,
		ProcessingTime: 150 * time.Microsecond,
		CreatedAt:      recv,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	Convey("Given a migrated sqlite store", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		now := time.Now()

		Convey("When an event is stored and read back", func() {
			for i, raw := range []string{
				"pt1;3", "hl2;44", "mch;101;M-58;58kg;3;#0000FF;#FFFFFF",
				"at1;KIM;Kim Taejoon;KOR;at2;JEN;Jendoubi;TUN", "pt1;9", "zz9;x", "avt;1", "rnd;2",
			} {
				ev := storedEvent(raw, uint64(i+1), now)
				id, err := s.Store(ctx, ev)
				So(err, ShouldBeNil)
				ev.ID = id

				got, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, ev)
			}
		})

		Convey("When an enriched point is stored", func() {
			ev := storedEvent("pt1;3", 1, now)
			ev.Enrichment = &correlation.Enrichment{Readings: []int{80, 85}, Max: 85, Average: 82.5}
			id, err := s.Store(ctx, ev)
			So(err, ShouldBeNil)

			Convey("Then the enrichment should survive the reload", func() {
				got, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(got.Enrichment, ShouldResemble, ev.Enrichment)
			})
		})

		Convey("When an unknown id is requested", func() {
			_, err := s.Get(ctx, 999)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When the match lifecycle is stored", func() {
			_, err := s.StoreBatch(ctx, []model.StoredEvent{
				storedEvent("mch;101;M-58;58kg;3;#0000FF;#FFFFFF", 1, now),
				storedEvent("at1;KIM;Kim Taejoon;KOR;at2;JEN;Jendoubi;TUN", 2, now),
				storedEvent("rnd;1", 3, now),
			})
			So(err, ShouldBeNil)

			Convey("Then the match should reference both athletes and the round", func() {
				var category string
				var blue, red int64
				var rounds int
				err := s.withConn(ctx, func(conn *Conn) error {
					if err := conn.QueryRowContext(ctx, `SELECT category, blue_athlete_id, red_athlete_id
						FROM matches WHERE match_number = '101'`).Scan(&category, &blue, &red); err != nil {
						return err
					}
					return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds WHERE match_number = '101'`).Scan(&rounds)
				})
				So(err, ShouldBeNil)
				So(category, ShouldEqual, "M-58")
				So(blue, ShouldBeGreaterThan, 0)
				So(red, ShouldBeGreaterThan, 0)
				So(blue, ShouldNotEqual, red)
				So(rounds, ShouldEqual, 1)
			})
		})

		Convey("When the same session sequence is stored twice", func() {
			_, err := s.Store(ctx, storedEvent("pt1;1", 7, now))
			So(err, ShouldBeNil)
			_, err = s.Store(ctx, storedEvent("pt1;2", 7, now))

			Convey("Then the second write should fail as a persistence error", func() {
				So(errors.Is(err, ErrPersistence), ShouldBeTrue)
			})
		})
	})
}

func TestQuery(t *testing.T) {
	Convey("Given stored events of mixed kinds", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		now := time.Now()
		for i, raw := range []string{"pt1;1", "hl1;20", "pt2;2", "pt1;9", "zz1"} {
			_, err := s.Store(ctx, storedEvent(raw, uint64(i+1), now))
			So(err, ShouldBeNil)
		}

		Convey("Then filters should narrow the result", func() {
			points, err := s.Query(ctx, model.EventFilter{Kind: protocol.KindPoint})
			So(err, ShouldBeNil)
			So(points, ShouldHaveLength, 3)
			So(points[0].Sequence, ShouldEqual, uint64(1))

			latest, err := s.Query(ctx, model.EventFilter{Kind: protocol.KindPoint, Descending: true, Limit: 1})
			So(err, ShouldBeNil)
			So(latest, ShouldHaveLength, 1)
			So(latest[0].Sequence, ShouldEqual, uint64(4))

			partial, err := s.QueryByStatus(ctx, protocol.StatusPartial, 0)
			So(err, ShouldBeNil)
			So(partial, ShouldHaveLength, 1)
			So(partial[0].ValidationErrors, ShouldNotBeEmpty)

			none, err := s.Query(ctx, model.EventFilter{SessionID: "other"})
			So(err, ShouldBeNil)
			So(none, ShouldBeEmpty)

			n, err := s.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, int64(5))
		})
	})
}

func TestStatusOverride(t *testing.T) {
	Convey("Given a stored partial event", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		id, err := s.Store(ctx, storedEvent("pt1;9", 1, time.Now()))
		So(err, ShouldBeNil)

		Convey("When an operator overrides the status twice", func() {
			_, err := s.UpdateStatus(ctx, id, protocol.StatusRecognized, "referee", "video review")
			So(err, ShouldBeNil)
			change, err := s.UpdateStatus(ctx, id, protocol.StatusUnknown, "admin", "")
			So(err, ShouldBeNil)

			Convey("Then history should record both changes in order", func() {
				So(change.OldStatus, ShouldEqual, protocol.StatusRecognized)
				history, err := s.StatusHistory(ctx, id)
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 2)
				So(history[0].OldStatus, ShouldEqual, protocol.StatusPartial)
				So(history[0].ChangedBy, ShouldEqual, "referee")
				So(history[1].NewStatus, ShouldEqual, protocol.StatusUnknown)

				got, err := s.Get(ctx, id)
				So(err, ShouldBeNil)
				So(got.Status, ShouldEqual, protocol.StatusUnknown)
			})
		})

		Convey("When the override is invalid", func() {
			_, err := s.UpdateStatus(ctx, id, "bogus", "admin", "")
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			_, err = s.UpdateStatus(ctx, id, protocol.StatusRecognized, " ", "")
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			_, err = s.UpdateStatus(ctx, id+100, protocol.StatusRecognized, "admin", "")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestStatistics(t *testing.T) {
	Convey("Given events with different processing times", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		for i, d := range []time.Duration{2 * time.Millisecond, 4 * time.Millisecond} {
			ev := storedEvent("pt1;1", uint64(i+1), time.Now())
			ev.ProcessingTime = d
			_, err := s.Store(ctx, ev)
			So(err, ShouldBeNil)
		}
		So(s.UpdateStatistics(ctx, "", protocol.DefaultVersion, protocol.KindRaw, protocol.StatusUnknown, time.Millisecond), ShouldBeNil)

		Convey("Then the aggregate should track count, min and max", func() {
			stats, err := s.Statistics(ctx, "s-1")
			So(err, ShouldBeNil)
			So(stats, ShouldHaveLength, 1)
			st := stats[0]
			So(st.Kind, ShouldEqual, protocol.KindPoint)
			So(st.Count, ShouldEqual, int64(2))
			So(st.TotalMicros, ShouldEqual, int64(6000))
			So(st.MinMicros, ShouldEqual, int64(2000))
			So(st.MaxMicros, ShouldEqual, int64(4000))

			all, err := s.Statistics(ctx, "")
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)
		})
	})
}

func TestUnknownAggregation(t *testing.T) {
	Convey("Given a migrated store", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		first := micros(time.Now().Add(-time.Minute))
		rec := model.UnknownRecord{PatternHash: protocol.Fingerprint("zz9;1"), Pattern: "zz#;#", RawPayload: "zz9;1", FirstSeen: first, LastSeen: first}

		Convey("When the same pattern is upserted twice", func() {
			So(s.UpsertUnknown(ctx, rec), ShouldBeNil)
			later := rec
			later.RawPayload = "zz9;2"
			later.LastSeen = first.Add(30 * time.Second)
			So(s.UpsertUnknown(ctx, later), ShouldBeNil)

			Convey("Then one row should carry count 2 and the latest payload", func() {
				got, err := s.Unknown(ctx, rec.PatternHash)
				So(err, ShouldBeNil)
				So(got.OccurrenceCount, ShouldEqual, int64(2))
				So(got.RawPayload, ShouldEqual, "zz9;2")
				So(got.FirstSeen, ShouldEqual, first)
				So(got.LastSeen, ShouldEqual, later.LastSeen)
			})

			Convey("Then annotation should be stored", func() {
				So(s.AnnotateUnknown(ctx, rec.PatternHash, "point", "new firmware"), ShouldBeNil)
				list, err := s.ListUnknown(ctx, 10)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(list[0].SuggestedKind, ShouldEqual, "point")
			})
		})

		Convey("When annotating a missing pattern", func() {
			err := s.AnnotateUnknown(ctx, "nope", "point", "")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When the hash is empty", func() {
			So(errors.Is(s.UpsertUnknown(ctx, model.UnknownRecord{}), ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func TestMigrate(t *testing.T) {
	Convey("Given a migrated store", t, func() {
		ctx := context.Background()
		s := openTestStore(t)

		Convey("When migrating again", func() {
			So(s.Migrate(ctx), ShouldBeNil)

			Convey("Then rules should be seeded once", func() {
				rules, err := s.ValidationRules(ctx, "", "")
				So(err, ShouldBeNil)
				So(len(rules), ShouldEqual, len(protocol.Rules()))

				points, err := s.ValidationRules(ctx, protocol.KindPoint, protocol.DefaultVersion)
				So(err, ShouldBeNil)
				So(points, ShouldNotBeEmpty)
				for _, r := range points {
					So(r.EventKind, ShouldEqual, protocol.KindPoint)
				}
				So(s.eventTypes.len(), ShouldEqual, len(protocol.Kinds()))
			})
		})
	})
}

func TestOpen(t *testing.T) {
	Convey("Given an unsupported driver", t, func() {
		_, err := Open(context.Background(), "mysql", "dsn")
		So(errors.Is(err, ErrUnsupportedDriver), ShouldBeTrue)
	})
}

func TestRebind(t *testing.T) {
	Convey("Given both dialects", t, func() {
		pg, err := dialectFor(DriverPostgres)
		So(err, ShouldBeNil)
		lite, err := dialectFor(DriverSQLite)
		So(err, ShouldBeNil)

		q := "SELECT a FROM t WHERE b = ? AND c IN (?, ?)"
		So(pg.rebind(q), ShouldEqual, "SELECT a FROM t WHERE b = $1 AND c IN ($2, $3)")
		So(lite.rebind(q), ShouldEqual, q)
		So(placeholders(3), ShouldEqual, "?, ?, ?")
		So(placeholders(0), ShouldEqual, "")
	})
}
