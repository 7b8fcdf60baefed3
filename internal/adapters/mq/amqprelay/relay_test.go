package amqprelay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"

	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/domain/eventctx"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	out  []published
	fail bool
}

func (f *fakePublisher) Publish(exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		f.fail = false
		return errors.New("channel closed")
	}
	f.out = append(f.out, published{exchange, key, msg})
	return nil
}

func TestRelay(t *testing.T) {
	Convey("Given a relay subscribed to a bus", t, func() {
		b := bus.New()
		sub, err := b.Subscribe("amqp", 16)
		So(err, ShouldBeNil)
		pub := &fakePublisher{fail: true}
		r := New(pub, "hogu.events")

		done := make(chan struct{})
		go func() {
			r.Run(context.Background(), sub)
			close(done)
		}()

		Convey("When events and a snapshot are published", func() {
			ev := model.StoredEvent{
				Event:    protocol.Parse("pt1;3", time.Now()),
				Context:  eventctx.Context{SessionID: "s1"},
				Sequence: 4,
			}
			b.Publish(ev) // first publish fails and is skipped
			b.Publish(ev)
			b.PublishStatus(model.StatusSnapshot{Received: 2})
			b.Close()
			<-done

			Convey("Then messages should reach the exchange as JSON", func() {
				So(pub.out, ShouldHaveLength, 2)
				So(pub.out[0].exchange, ShouldEqual, "hogu.events")
				So(pub.out[0].key, ShouldEqual, "event.point")
				So(pub.out[0].msg.MessageId, ShouldEqual, "s1:4")
				So(pub.out[0].msg.ContentType, ShouldEqual, "application/json")
				So(pub.out[1].key, ShouldEqual, "status")

				var decoded struct {
					Event struct {
						Kind     string `json:"kind"`
						Sequence uint64 `json:"sequence"`
					} `json:"event"`
				}
				So(json.Unmarshal(pub.out[0].msg.Body, &decoded), ShouldBeNil)
				So(decoded.Event.Kind, ShouldEqual, "point")
				So(decoded.Event.Sequence, ShouldEqual, uint64(4))
			})
		})
	})

	Convey("Given no broker url", t, func() {
		_, err := Dial("", "x")
		So(errors.Is(err, ErrNoURL), ShouldBeTrue)
	})
}
