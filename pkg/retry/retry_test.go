package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/hogu/pkg/retry"
	. "github.com/smartystreets/goconvey/convey"
)

func fastConfig(attempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDo(t *testing.T) {
	Convey("Given a retry configuration with three attempts", t, func() {
		ctx := context.Background()
		cfg := fastConfig(3)

		Convey("When the operation succeeds on the third attempt", func() {
			attempts := 0
			var retried []int
			cfg.OnRetry = func(n int, _ error) { retried = append(retried, n) }

			err := retry.Do(ctx, cfg, func(context.Context) error {
				attempts++
				if attempts < 3 {
					return errors.New("transient")
				}
				return nil
			})

			Convey("Then it should succeed and report each retry", func() {
				So(err, ShouldBeNil)
				So(attempts, ShouldEqual, 3)
				So(retried, ShouldResemble, []int{2, 3})
			})
		})

		Convey("When every attempt fails", func() {
			attempts := 0
			cause := errors.New("db locked")
			err := retry.Do(ctx, cfg, func(context.Context) error {
				attempts++
				return cause
			})

			Convey("Then it should stop after the bound and wrap both sentinels", func() {
				So(attempts, ShouldEqual, 3)
				So(errors.Is(err, retry.ErrExhausted), ShouldBeTrue)
				So(errors.Is(err, cause), ShouldBeTrue)
			})
		})

		Convey("When the operation returns a permanent error", func() {
			attempts := 0
			err := retry.Do(ctx, cfg, func(context.Context) error {
				attempts++
				return retry.Permanent(errors.New("constraint violation"))
			})

			Convey("Then it should not retry", func() {
				So(attempts, ShouldEqual, 1)
				So(retry.IsPermanent(err), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled during backoff", func() {
			cctx, cancel := context.WithCancel(ctx)
			slow := retry.Config{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: time.Second}
			attempts := 0
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
			err := retry.Do(cctx, slow, func(context.Context) error {
				attempts++
				return errors.New("transient")
			})

			Convey("Then it should return the context error", func() {
				So(attempts, ShouldEqual, 1)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestDoWithResult(t *testing.T) {
	Convey("Given an operation producing a value", t, func() {
		calls := 0
		v, err := retry.DoWithResult(context.Background(), fastConfig(2), func(context.Context) (int64, error) {
			calls++
			if calls == 1 {
				return 0, errors.New("first fails")
			}
			return 42, nil
		})

		Convey("Then the value of the successful attempt is returned", func() {
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 42)
		})
	})
}
