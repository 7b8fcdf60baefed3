package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/hogu/internal/domain/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFingerprint(t *testing.T) {
	Convey("Given unknown payloads", t, func() {
		Convey("When they differ only in numbers", func() {
			a := protocol.Fingerprint("xq9;12;ab")
			b := protocol.Fingerprint("xq7;3;ab ;")

			Convey("Then they should share a fingerprint", func() {
				So(a, ShouldEqual, b)
				So(a, ShouldHaveLength, 16)
				So(protocol.Pattern("xq9;12;ab"), ShouldEqual, "xq#;#;ab")
			})
		})

		Convey("When their shape differs", func() {
			Convey("Then fingerprints should differ", func() {
				So(protocol.Fingerprint("xq9;12"), ShouldNotEqual, protocol.Fingerprint("xq9;12;ab"))
			})
		})
	})
}

func TestRules(t *testing.T) {
	Convey("Given the codec rule table", t, func() {
		rules := protocol.Rules()

		Convey("Then it should cover every modeled kind at the default version", func() {
			So(rules, ShouldNotBeEmpty)
			kinds := map[protocol.Kind]bool{}
			for _, r := range rules {
				So(r.ProtocolVersion, ShouldEqual, protocol.DefaultVersion)
				So(r.ErrorMessage, ShouldNotBeBlank)
				kinds[r.EventKind] = true
			}
			So(kinds[protocol.KindPoint], ShouldBeTrue)
			So(kinds[protocol.KindMatchConfig], ShouldBeTrue)
			So(kinds[protocol.KindRaw], ShouldBeFalse)
		})

		Convey("Then the point type range should match the codec", func() {
			var found bool
			for _, r := range rules {
				if r.EventKind != protocol.KindPoint || r.RuleKind != protocol.RuleRange {
					continue
				}
				var def struct {
					Field string `json:"field"`
					Min   int    `json:"min"`
					Max   int    `json:"max"`
				}
				So(json.Unmarshal([]byte(r.Definition), &def), ShouldBeNil)
				So(def.Field, ShouldEqual, "point_type")
				So(def.Min, ShouldEqual, 1)
				So(def.Max, ShouldEqual, 5)
				found = true
			}
			So(found, ShouldBeTrue)
		})
	})
}
