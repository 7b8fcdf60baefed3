package scoring_test

import (
	"testing"

	scoring "github.com/okian/hogu/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicy_Confidence(t *testing.T) {
	Convey("Given the default confidence policy", t, func() {
		policy := scoring.NewPolicy()

		Convey("When a recognized event has no violations", func() {
			Convey("Then confidence should be 1.0", func() {
				So(policy.Confidence(scoring.GradeRecognized, 0), ShouldEqual, 1.0)
			})
		})

		Convey("When a recognized event has violations", func() {
			Convey("Then each violation should cost 0.35", func() {
				So(policy.Confidence(scoring.GradeRecognized, 1), ShouldEqual, 0.65)
				So(policy.Confidence(scoring.GradeRecognized, 2), ShouldEqual, 0.3)
			})

			Convey("And confidence should never drop below the floor", func() {
				So(policy.Confidence(scoring.GradeRecognized, 3), ShouldEqual, 0.1)
				So(policy.Confidence(scoring.GradeRecognized, 50), ShouldEqual, 0.1)
			})
		})

		Convey("When the event is deprecated", func() {
			Convey("Then confidence should be 0.8", func() {
				So(policy.Confidence(scoring.GradeDeprecated, 0), ShouldEqual, 0.8)
			})
		})

		Convey("When the event is unrecognized", func() {
			Convey("Then confidence should be 0.0 regardless of violations", func() {
				So(policy.Confidence(scoring.GradeUnrecognized, 0), ShouldEqual, 0.0)
				So(policy.Confidence(scoring.GradeUnrecognized, 4), ShouldEqual, 0.0)
			})
		})
	})
}

func TestPolicy_Options(t *testing.T) {
	Convey("Given a policy with custom options", t, func() {
		policy := scoring.NewPolicy(
			scoring.WithPenalty(0.5),
			scoring.WithFloor(0.2),
			scoring.WithDeprecatedConfidence(0.5),
		)

		Convey("Then the custom values should apply", func() {
			So(policy.Confidence(scoring.GradeRecognized, 1), ShouldEqual, 0.5)
			So(policy.Confidence(scoring.GradeRecognized, 2), ShouldEqual, 0.2)
			So(policy.Confidence(scoring.GradeDeprecated, 0), ShouldEqual, 0.5)
		})

		Convey("When invalid options are supplied", func() {
			defaults := scoring.NewPolicy(
				scoring.WithPenalty(-1),
				scoring.WithFloor(2),
				scoring.WithDeprecatedConfidence(7),
			)

			Convey("Then the defaults should be kept", func() {
				So(defaults.Confidence(scoring.GradeRecognized, 1), ShouldEqual, 0.65)
				So(defaults.Confidence(scoring.GradeDeprecated, 0), ShouldEqual, 0.8)
			})
		})
	})
}
