package overlay_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/hogu/internal/adapters/http/overlay"
	"github.com/okian/hogu/internal/adapters/mq/bus"
	"github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

func event(kind protocol.Kind, seq uint64) model.StoredEvent {
	return model.StoredEvent{Event: protocol.Event{Kind: kind, Raw: "x"}, Sequence: seq}
}

// waitFor polls cond for up to two seconds.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub(t *testing.T) {
	Convey("Given a hub bridging a bus", t, func() {
		b := bus.New()
		hub := overlay.New(b, overlay.WithBufferSize(16))
		srv := httptest.NewServer(hub)
		defer srv.Close()
		defer b.Close()

		conn := dial(t, srv)
		So(waitFor(func() bool { return b.Len() == 1 }), ShouldBeTrue)
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		Convey("When events and a status snapshot are published", func() {
			b.Publish(event(protocol.KindPoint, 1))
			b.PublishStatus(model.StatusSnapshot{Ingestion: "running", Received: 1})

			var f1, f2 overlay.Frame
			So(conn.ReadJSON(&f1), ShouldBeNil)
			So(conn.ReadJSON(&f2), ShouldBeNil)

			Convey("Then the client should receive both frames in order", func() {
				So(f1.Type, ShouldEqual, overlay.FrameEvent)
				So(f1.Event, ShouldNotBeNil)
				So(f1.Event.Kind, ShouldEqual, protocol.KindPoint)
				So(f1.Event.Sequence, ShouldEqual, uint64(1))
				So(f2.Type, ShouldEqual, overlay.FrameStatus)
				So(f2.Status.Ingestion, ShouldEqual, "running")
			})
		})

		Convey("When the client narrows the stream to score events", func() {
			So(conn.WriteJSON(map[string]any{"type": "subscribe", "kinds": []string{"score"}}), ShouldBeNil)
			// Give the read pump time to apply the filter.
			time.Sleep(50 * time.Millisecond)
			b.Publish(event(protocol.KindPoint, 1))
			b.Publish(event(protocol.KindScore, 2))

			var f overlay.Frame
			So(conn.ReadJSON(&f), ShouldBeNil)

			Convey("Then other kinds should be filtered out", func() {
				So(f.Event, ShouldNotBeNil)
				So(f.Event.Kind, ShouldEqual, protocol.KindScore)
			})
		})

		Convey("When the client disconnects", func() {
			_ = conn.Close()

			Convey("Then its subscription should be released", func() {
				So(waitFor(func() bool { return b.Len() == 0 && hub.Len() == 0 }), ShouldBeTrue)
			})
		})
	})
}

func TestHubOrigins(t *testing.T) {
	Convey("Given a hub restricted to one origin", t, func() {
		b := bus.New()
		defer b.Close()
		srv := httptest.NewServer(overlay.New(b, overlay.WithAllowedOrigins("http://overlay.local")))
		defer srv.Close()
		url := "ws" + strings.TrimPrefix(srv.URL, "http")

		Convey("When a foreign origin connects", func() {
			header := map[string][]string{"Origin": {"http://evil.example"}}
			_, resp, err := websocket.DefaultDialer.Dial(url, header)

			Convey("Then the handshake should be refused", func() {
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, 403)
			})
		})
	})
}
