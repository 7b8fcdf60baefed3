package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPool(t *testing.T) {
	Convey("Given a store with a single connection", t, func() {
		ctx := context.Background()
		s := openTestStore(t, WithPoolOptions(WithSize(1), WithAcquireTimeout(50*time.Millisecond)))

		Convey("When the only connection is held", func() {
			conn, err := s.pool.Acquire(ctx)
			So(err, ShouldBeNil)
			So(s.PoolStats().InUse, ShouldEqual, 1)

			start := time.Now()
			_, err = s.Count(ctx)

			Convey("Then other callers should time out as exhausted", func() {
				So(errors.Is(err, ErrPoolExhausted), ShouldBeTrue)
				So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
				So(s.PoolStats().Timeouts, ShouldBeGreaterThanOrEqualTo, uint64(1))
			})

			Convey("Then releasing should make the connection reusable", func() {
				conn.Release()
				_, err := s.Count(ctx)
				So(err, ShouldBeNil)
				So(s.PoolStats().Idle, ShouldEqual, 1)
				So(s.PoolStats().InUse, ShouldEqual, 0)
			})
		})

		Convey("When the context is already cancelled", func() {
			conn, err := s.pool.Acquire(ctx)
			So(err, ShouldBeNil)
			defer conn.Release()
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err = s.pool.Acquire(cctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given a closed pool", t, func() {
		s := openTestStore(t)
		So(s.Close(), ShouldBeNil)
		_, err := s.pool.Acquire(context.Background())
		So(errors.Is(err, ErrPoolClosed), ShouldBeTrue)
	})
}
