package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestArchive(t *testing.T) {
	Convey("Given old and recent events", t, func() {
		ctx := context.Background()
		s := openTestStore(t)
		now := time.Now()
		old := now.Add(-3 * day)

		var oldIDs []int64
		for i, raw := range []string{"pt1;3", "hl1;50"} {
			id, err := s.Store(ctx, storedEvent(raw, uint64(i+1), old))
			So(err, ShouldBeNil)
			oldIDs = append(oldIDs, id)
		}
		before, err := s.Get(ctx, oldIDs[0])
		So(err, ShouldBeNil)
		_, err = s.Store(ctx, storedEvent("pt2;1", 3, now))
		So(err, ShouldBeNil)

		Convey("When archiving events older than a day", func() {
			moved, err := s.ArchiveOlderThan(ctx, 1)
			So(err, ShouldBeNil)
			So(moved, ShouldEqual, int64(2))

			Convey("Then only recent events should stay in primary storage", func() {
				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(1))
				_, err = s.Get(ctx, oldIDs[0])
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("Then a second run should move nothing", func() {
				again, err := s.ArchiveOlderThan(ctx, 1)
				So(err, ShouldBeNil)
				So(again, ShouldEqual, int64(0))
			})

			Convey("Then restoring the range should bring them back unchanged", func() {
				restored, err := s.RestoreFromArchive(ctx, old.Add(-time.Hour), old.Add(time.Hour))
				So(err, ShouldBeNil)
				So(restored, ShouldEqual, int64(2))

				n, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(3))
				got, err := s.Get(ctx, oldIDs[0])
				So(err, ShouldBeNil)
				So(got, ShouldResemble, before)
			})
		})

		Convey("When a restored event collides with a newer one on session and sequence", func() {
			_, err := s.ArchiveOlderThan(ctx, 1)
			So(err, ShouldBeNil)
			newer, err := s.Store(ctx, storedEvent("pt1;1", 1, now))
			So(err, ShouldBeNil)

			restored, err := s.RestoreFromArchive(ctx, old.Add(-time.Hour), old.Add(time.Hour))
			So(err, ShouldBeNil)

			Convey("Then only the free row should come back", func() {
				So(restored, ShouldEqual, int64(1))
				_, err := s.Get(ctx, oldIDs[1])
				So(err, ShouldBeNil)
				_, err = s.Get(ctx, oldIDs[0])
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
				got, err := s.Get(ctx, newer)
				So(err, ShouldBeNil)
				So(got.Event.Raw, ShouldEqual, "pt1;1")
			})

			Convey("Then the colliding row should stay archived with its details", func() {
				So(archivedCount(ctx, s, "pss_events_archive"), ShouldEqual, int64(1))
				So(archivedCount(ctx, s, "pss_event_details_archive"), ShouldEqual, int64(2))
				last, err := s.LastSequence(ctx, "s-1")
				So(err, ShouldBeNil)
				So(last, ShouldEqual, uint64(3))
			})

			Convey("Then restoring again once the slot is free should recover it", func() {
				_, err := s.ArchiveBefore(ctx, now.Add(time.Hour))
				So(err, ShouldBeNil)
				restored, err := s.RestoreFromArchive(ctx, old.Add(-time.Hour), old.Add(time.Hour))
				So(err, ShouldBeNil)
				So(restored, ShouldEqual, int64(2))
				got, err := s.Get(ctx, oldIDs[0])
				So(err, ShouldBeNil)
				So(got, ShouldResemble, before)
				So(archivedCount(ctx, s, "pss_events_archive"), ShouldEqual, int64(2))
			})
		})

		Convey("When the arguments are invalid", func() {
			_, err := s.ArchiveOlderThan(ctx, -1)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
			_, err = s.RestoreFromArchive(ctx, now, old)
			So(errors.Is(err, ErrInvalidArgument), ShouldBeTrue)
		})
	})
}

func archivedCount(ctx context.Context, s *SQLStore, table string) int64 {
	var n int64
	err := s.withConn(ctx, func(conn *Conn) error {
		return conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	})
	So(err, ShouldBeNil)
	return n
}
