package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/hogu/internal/domain/correlation"
	"github.com/okian/hogu/internal/domain/eventctx"
	model "github.com/okian/hogu/internal/domain/model"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/smartystreets/goconvey/convey"
)

func TestStoredEvent(t *testing.T) {
	convey.Convey("Given a stored point event with enrichment", t, func() {
		ev := model.StoredEvent{
			Event:      protocol.Parse("pt1;3;", time.Now()),
			Context:    eventctx.Context{SessionID: "s1", MatchID: "101"},
			Sequence:   7,
			Enrichment: &correlation.Enrichment{Readings: []int{85}, Max: 85, Average: 85},
		}

		convey.Convey("When encoding it as JSON", func() {
			b, err := json.Marshal(ev)
			convey.So(err, convey.ShouldBeNil)

			var out map[string]any
			convey.So(json.Unmarshal(b, &out), convey.ShouldBeNil)

			convey.Convey("Then the parsed event fields should be flattened", func() {
				convey.So(out["kind"], convey.ShouldEqual, "point")
				convey.So(out["status"], convey.ShouldEqual, "recognized")
				convey.So(out["sequence"], convey.ShouldEqual, float64(7))
				convey.So(out["payload"], convey.ShouldResemble, map[string]any{"athlete": "blue", "point_type": float64(3)})
				convey.So(out["context"], convey.ShouldResemble, map[string]any{"session_id": "s1", "match_id": "101"})
			})
		})
	})
}

func TestStatistic(t *testing.T) {
	convey.Convey("Given statistics aggregates", t, func() {
		convey.Convey("When the count is zero", func() {
			convey.Convey("Then the average should be zero", func() {
				convey.So(model.Statistic{}.AverageMicros(), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When there are samples", func() {
			s := model.Statistic{Count: 4, TotalMicros: 100}

			convey.Convey("Then the average should divide the total", func() {
				convey.So(s.AverageMicros(), convey.ShouldEqual, 25.0)
			})
		})
	})
}
