package correlation_test

import (
	"sync"
	"testing"
	"time"

	"github.com/okian/hogu/internal/domain/correlation"
	"github.com/okian/hogu/internal/domain/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWindow_Recent(t *testing.T) {
	Convey("Given a window with the default 5s lookback", t, func() {
		w := correlation.New()
		base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

		Convey("When readings arrive at t, t+1s and t+3s after one 6s before the event", func() {
			w.Record(protocol.Blue, 10, base.Add(-2*time.Second))
			w.Record(protocol.Blue, 20, base)
			w.Record(protocol.Blue, 30, base.Add(time.Second))
			w.Record(protocol.Blue, 40, base.Add(3*time.Second))
			now := base.Add(4 * time.Second)

			Convey("Then the scoring event at t+4s should see the last three", func() {
				So(w.Recent(protocol.Blue, now, 5*time.Second), ShouldResemble, []int{20, 30, 40})
			})

			Convey("And the reading 6s before the event should be excluded", func() {
				So(w.Recent(protocol.Blue, now, 5*time.Second), ShouldNotContain, 10)
			})

			Convey("And reading should be non-destructive", func() {
				w.Recent(protocol.Blue, now, 5*time.Second)
				So(w.Len(protocol.Blue), ShouldEqual, 4)
			})

			Convey("And the other athlete should be unaffected", func() {
				So(w.Recent(protocol.Red, now, 5*time.Second), ShouldBeEmpty)
			})
		})

		Convey("When a reading is in the future relative to now", func() {
			w.Record(protocol.Red, 50, base.Add(time.Second))

			Convey("Then it should be excluded", func() {
				So(w.Recent(protocol.Red, base, 5*time.Second), ShouldBeEmpty)
			})
		})
	})
}

func TestWindow_Capacity(t *testing.T) {
	Convey("Given a window with capacity 3", t, func() {
		w := correlation.New(correlation.WithCapacity(3))
		now := time.Now()

		Convey("When five readings are recorded", func() {
			for i := 1; i <= 5; i++ {
				w.Record(protocol.Red, i, now)
			}

			Convey("Then only the three newest should remain in order", func() {
				So(w.Len(protocol.Red), ShouldEqual, 3)
				So(w.Recent(protocol.Red, now, time.Second), ShouldResemble, []int{3, 4, 5})
			})
		})
	})
}

func TestWindow_Enrich(t *testing.T) {
	Convey("Given a single hit-level reading", t, func() {
		w := correlation.New()
		now := time.Now()
		w.Record(protocol.Blue, 85, now)

		Convey("When enriching a subsequent point", func() {
			e, ok := w.Enrich(protocol.Blue, now.Add(10*time.Millisecond))

			Convey("Then the enrichment should summarize the reading", func() {
				So(ok, ShouldBeTrue)
				So(e.Readings, ShouldResemble, []int{85})
				So(e.Max, ShouldEqual, 85)
				So(e.Average, ShouldEqual, 85.0)
			})
		})

		Convey("When several readings are in the window", func() {
			w.Record(protocol.Blue, 40, now)
			w.Record(protocol.Blue, 60, now)
			e, ok := w.Enrich(protocol.Blue, now)

			Convey("Then max and average should be computed", func() {
				So(ok, ShouldBeTrue)
				So(e.Max, ShouldEqual, 85)
				So(e.Average, ShouldAlmostEqual, 61.666, 0.01)
			})
		})

		Convey("When no readings are in the window", func() {
			_, ok := w.Enrich(protocol.Blue, now.Add(time.Minute))

			Convey("Then there should be no enrichment", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the window is cleared", func() {
			w.ClearAll()
			_, ok := w.Enrich(protocol.Blue, now)

			Convey("Then readings should be gone", func() {
				So(ok, ShouldBeFalse)
				So(w.Len(protocol.Blue), ShouldEqual, 0)
			})
		})

		Convey("When a custom lookback is configured", func() {
			short := correlation.New(correlation.WithWindow(100 * time.Millisecond))
			short.Record(protocol.Blue, 85, now)
			_, ok := short.Enrich(protocol.Blue, now.Add(time.Second))

			Convey("Then older readings should be excluded", func() {
				So(ok, ShouldBeFalse)
			})
		})
	})
}

func TestWindow_Concurrent(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		w := correlation.New()
		now := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 500; j++ {
					w.Record(protocol.Athlete(1+i%2), j, now)
					w.Enrich(protocol.Athlete(1+i%2), now)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then no ring should exceed its capacity", func() {
			So(w.Len(protocol.Blue), ShouldEqual, correlation.DefaultCapacity)
			So(w.Len(protocol.Red), ShouldEqual, correlation.DefaultCapacity)
		})
	})
}
