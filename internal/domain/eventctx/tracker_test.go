package eventctx_test

import (
	"sync"
	"testing"

	"github.com/okian/hogu/internal/domain/eventctx"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTracker(t *testing.T) {
	Convey("Given an empty tracker", t, func() {
		var changed []string
		tr := eventctx.NewTracker(eventctx.WithOnChange(func(f string) { changed = append(changed, f) }))

		Convey("Then the context should be unset", func() {
			So(tr.Current().IsZero(), ShouldBeTrue)
		})

		Convey("When a partial update is applied", func() {
			tr.Set(eventctx.Update{SessionID: eventctx.Value("s1"), TournamentID: eventctx.Value("t1")})
			tr.Set(eventctx.Update{MatchID: eventctx.Value("101")})

			Convey("Then untouched fields should be kept", func() {
				So(tr.Current(), ShouldResemble, eventctx.Context{SessionID: "s1", MatchID: "101", TournamentID: "t1"})
				So(changed, ShouldResemble, []string{"session_id", "tournament_id", "match_id"})
			})

			Convey("And an empty value should clear a field", func() {
				tr.Set(eventctx.Update{TournamentID: eventctx.Value("")})
				So(tr.Current().TournamentID, ShouldEqual, "")
			})
		})

		Convey("When stamping events", func() {
			tr.Set(eventctx.Update{SessionID: eventctx.Value("s1")})
			_, first := tr.Stamp()
			c, second := tr.Stamp()

			Convey("Then sequences should start at 1 and increase", func() {
				So(first, ShouldEqual, uint64(1))
				So(second, ShouldEqual, uint64(2))
				So(c.SessionID, ShouldEqual, "s1")
			})

			Convey("And a new session should start its own sequence", func() {
				tr.Set(eventctx.Update{SessionID: eventctx.Value("s2")})
				_, seq := tr.Stamp()
				So(seq, ShouldEqual, uint64(1))
			})

			Convey("And a returning session should continue its sequence", func() {
				tr.Set(eventctx.Update{SessionID: eventctx.Value("s2")})
				tr.Stamp()
				tr.Set(eventctx.Update{SessionID: eventctx.Value("s1")})
				_, afterSwitch := tr.Stamp()
				tr.Clear()
				tr.Set(eventctx.Update{SessionID: eventctx.Value("s1")})
				_, afterClear := tr.Stamp()

				So(afterSwitch, ShouldEqual, uint64(3))
				So(afterClear, ShouldEqual, uint64(4))
			})

			Convey("And seeding should only raise a counter", func() {
				So(tr.Known("s1"), ShouldBeTrue)
				So(tr.Known("s3"), ShouldBeFalse)
				tr.Seed("s1", 1)
				tr.Seed("s3", 40)
				So(tr.Known("s3"), ShouldBeTrue)

				_, s1 := tr.Stamp()
				tr.Set(eventctx.Update{SessionID: eventctx.Value("s3")})
				_, s3 := tr.Stamp()
				So(s1, ShouldEqual, uint64(3))
				So(s3, ShouldEqual, uint64(41))
			})

			Convey("And an update to other fields should not restart it", func() {
				tr.Set(eventctx.Update{RoundID: eventctx.Value("2")})
				_, seq := tr.Stamp()
				So(seq, ShouldEqual, uint64(3))
			})
		})

		Convey("When match lifecycle signals arrive", func() {
			tr.RoundStarted("3")
			tr.MatchStarted("202")

			Convey("Then the round should be cleared by the new match", func() {
				So(tr.Current().MatchID, ShouldEqual, "202")
				So(tr.Current().RoundID, ShouldEqual, "")
			})

			Convey("And a round signal should set the round", func() {
				tr.RoundStarted("1")
				So(tr.Current().RoundID, ShouldEqual, "1")
			})
		})

		Convey("When a session is ensured", func() {
			id := tr.EnsureSession()

			Convey("Then a uuid session should be created once", func() {
				So(id, ShouldHaveLength, 36)
				So(tr.EnsureSession(), ShouldEqual, id)
			})
		})

		Convey("When cleared", func() {
			tr.Set(eventctx.Update{SessionID: eventctx.Value("s1"), MatchID: eventctx.Value("1")})
			tr.Stamp()
			tr.Clear()

			Convey("Then every field should reset", func() {
				So(tr.Current().IsZero(), ShouldBeTrue)
				So(tr.Sequence(), ShouldEqual, uint64(0))
				So(tr.Known("s1"), ShouldBeTrue)
			})
		})
	})
}

func TestTracker_ConcurrentStamp(t *testing.T) {
	Convey("Given many goroutines stamping the same session", t, func() {
		tr := eventctx.NewTracker(eventctx.WithInitial(eventctx.Context{SessionID: "s"}))
		const n = 50
		const per = 200

		var wg sync.WaitGroup
		seen := make(chan uint64, n*per)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < per; j++ {
					_, seq := tr.Stamp()
					seen <- seq
				}
			}()
		}
		wg.Wait()
		close(seen)

		Convey("Then every sequence should be unique", func() {
			unique := map[uint64]bool{}
			for s := range seen {
				unique[s] = true
			}
			So(len(unique), ShouldEqual, n*per)
			So(tr.Sequence(), ShouldEqual, uint64(n*per))
		})
	})
}
