package replay

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestVerify(t *testing.T) {
	Convey("Given a baseline status", t, func() {
		before := Status{Received: 10, Published: 10, Persisted: 9, Failed: 1}

		Convey("When every sent datagram was persisted", func() {
			after := Status{Received: 60, Published: 60, Persisted: 59, Failed: 1}

			Convey("Then verification should pass", func() {
				So(Verify(before, after, 50), ShouldBeNil)
				So(settled(before, after, 50), ShouldBeTrue)
			})
		})

		Convey("When datagrams were lost before receipt", func() {
			after := Status{Received: 55, Published: 55, Persisted: 54, Failed: 1}
			err := Verify(before, after, 50)

			Convey("Then verification should report the shortfall", func() {
				So(errors.Is(err, ErrMismatch), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "received 45 of 50")
			})
		})

		Convey("When persistence is still behind", func() {
			after := Status{Received: 60, Published: 60, Persisted: 40, Failed: 1}

			Convey("Then the run should not be settled", func() {
				So(settled(before, after, 50), ShouldBeFalse)
				So(Verify(before, after, 50), ShouldNotBeNil)
			})
		})

		Convey("When some events failed to persist", func() {
			after := Status{Received: 60, Published: 60, Persisted: 57, Failed: 3}
			err := Verify(before, after, 50)

			Convey("Then verification should name the failures", func() {
				So(errors.Is(err, ErrMismatch), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "2 events failed to persist")
			})
		})
	})
}
