package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/okian/hogu/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func event(seq uint64) Event {
	return model.StoredEvent{Sequence: seq}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2), WithName("test"))

		Convey("When it is empty", func() {
			So(q.Len(), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("When filled past capacity", func() {
			So(q.Enqueue(ctx, event(1)), ShouldBeNil)
			So(q.Enqueue(ctx, event(2)), ShouldBeNil)
			err := q.Enqueue(ctx, event(3))

			Convey("Then the extra event should be rejected without blocking", func() {
				So(errors.Is(err, ErrFull), ShouldBeTrue)
				So(q.Len(), ShouldEqual, 2)
			})

			Convey("Then events should come out in order", func() {
				So((<-q.Dequeue()).Sequence, ShouldEqual, uint64(1))
				So((<-q.Dequeue()).Sequence, ShouldEqual, uint64(2))
				So(q.Len(), ShouldEqual, 0)
			})
		})

		Convey("When closed with buffered events", func() {
			So(q.Enqueue(ctx, event(1)), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue should fail and the buffer should still drain", func() {
				So(errors.Is(q.Enqueue(ctx, event(2)), ErrClosed), ShouldBeTrue)
				var got []uint64
				for e := range q.Dequeue() {
					got = append(got, e.Sequence)
				}
				So(got, ShouldResemble, []uint64{1})
				So(q.IsClosed(), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled and the queue is full", func() {
			So(q.Enqueue(ctx, event(1)), ShouldBeNil)
			So(q.Enqueue(ctx, event(2)), ShouldBeNil)
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			err := q.Enqueue(cctx, event(3))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given concurrent producers and one consumer", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(1000))
		var wg sync.WaitGroup
		for p := 0; p < 10; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_ = q.Enqueue(ctx, event(uint64(i)))
				}
			}()
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)

		n := 0
		for range q.Dequeue() {
			n++
		}
		So(n, ShouldEqual, 1000)
	})
}
