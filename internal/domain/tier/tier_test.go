package tier_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/rota/internal/domain/tier"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"
)

func budget(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestClassify(t *testing.T) {
	Convey("Given the difficulty table", t, func() {
		Convey("EASY needs budget under 50 and at most one skill", func() {
			So(tier.Classify(budget("40"), 1), ShouldEqual, tier.Easy)
			So(tier.Classify(budget("0"), 0), ShouldEqual, tier.Easy)
			So(tier.Classify(budget("49.99"), 1), ShouldEqual, tier.Easy)
		})

		Convey("Budget 50 is no longer EASY", func() {
			So(tier.Classify(budget("50"), 1), ShouldEqual, tier.Medium)
		})

		Convey("Two skills under 50 is MEDIUM", func() {
			So(tier.Classify(budget("10"), 2), ShouldEqual, tier.Medium)
		})

		Convey("MEDIUM boundaries at budget 150 and three skills", func() {
			So(tier.Classify(budget("149.99"), 3), ShouldEqual, tier.Medium)
			So(tier.Classify(budget("150"), 3), ShouldEqual, tier.Hard)
			So(tier.Classify(budget("100"), 4), ShouldEqual, tier.Hard)
		})

		Convey("HARD uses OR between budget and skills", func() {
			So(tier.Classify(budget("299"), 9), ShouldEqual, tier.Hard)
			So(tier.Classify(budget("300"), 5), ShouldEqual, tier.Hard)
			So(tier.Classify(budget("10000"), 5), ShouldEqual, tier.Hard)
		})

		Convey("EXPERT is budget at least 300 with more than five skills", func() {
			So(tier.Classify(budget("300"), 6), ShouldEqual, tier.Expert)
			So(tier.Classify(budget("1000"), 12), ShouldEqual, tier.Expert)
		})

		Convey("Every input lands on exactly one task tier", func() {
			for _, b := range []string{"0", "49", "50", "149", "150", "299", "300", "5000"} {
				for skills := 0; skills <= 8; skills++ {
					got := tier.Classify(budget(b), skills)
					So(got, ShouldBeBetweenOrEqual, tier.Easy, tier.Expert)
					So(tier.Classify(budget(b), skills), ShouldEqual, got)
				}
			}
		})
	})
}

func TestReputationFloor(t *testing.T) {
	Convey("Given each difficulty", t, func() {
		So(tier.ReputationFloor(tier.Easy), ShouldEqual, 0.0)
		So(tier.ReputationFloor(tier.Medium), ShouldEqual, 3.0)
		So(tier.ReputationFloor(tier.Hard), ShouldEqual, 3.5)
		So(tier.ReputationFloor(tier.Expert), ShouldEqual, 4.0)

		Convey("Unknown levels have no floor", func() {
			So(tier.ReputationFloor(tier.Beginner), ShouldEqual, 0.0)
			So(tier.ReputationFloor(tier.Level(42)), ShouldEqual, 0.0)
		})
	})
}

func TestForOperator(t *testing.T) {
	Convey("Given operator experience", t, func() {
		So(tier.ForOperator(0, 5.0), ShouldEqual, tier.Beginner)
		So(tier.ForOperator(3, 3.0), ShouldEqual, tier.Easy)
		So(tier.ForOperator(9, 4.5), ShouldEqual, tier.Easy)
		So(tier.ForOperator(10, 3.5), ShouldEqual, tier.Medium)
		So(tier.ForOperator(24, 3.9), ShouldEqual, tier.Medium)
		So(tier.ForOperator(25, 4.0), ShouldEqual, tier.Hard)
		So(tier.ForOperator(49, 4.9), ShouldEqual, tier.Hard)
		So(tier.ForOperator(50, 4.9), ShouldEqual, tier.Expert)

		Convey("Failing a reputation gate falls through the chain", func() {
			So(tier.ForOperator(5, 2.0), ShouldEqual, tier.Expert)
			So(tier.ForOperator(5, 3.6), ShouldEqual, tier.Easy)
			So(tier.ForOperator(12, 3.0), ShouldEqual, tier.Expert)
			So(tier.ForOperator(60, 2.0), ShouldEqual, tier.Expert)
			So(tier.ForOperator(30, 3.9), ShouldEqual, tier.Expert)
		})
	})
}

func TestStretchTarget(t *testing.T) {
	Convey("Given operator tiers", t, func() {
		next, ok := tier.StretchTarget(tier.Easy)
		So(ok, ShouldBeTrue)
		So(next, ShouldEqual, tier.Medium)

		next, ok = tier.StretchTarget(tier.Hard)
		So(ok, ShouldBeTrue)
		So(next, ShouldEqual, tier.Expert)

		_, ok = tier.StretchTarget(tier.Beginner)
		So(ok, ShouldBeFalse)
		_, ok = tier.StretchTarget(tier.Expert)
		So(ok, ShouldBeFalse)
	})
}

func TestLevelText(t *testing.T) {
	Convey("Given tier levels", t, func() {
		So(tier.Medium.String(), ShouldEqual, "MEDIUM")
		So(tier.Level(9).String(), ShouldEqual, "Level(9)")

		Convey("They round trip through JSON by name", func() {
			b, err := json.Marshal(map[string]tier.Level{"tier": tier.Hard})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"tier":"HARD"}`)

			var out map[string]tier.Level
			So(json.Unmarshal([]byte(`{"tier":"expert"}`), &out), ShouldBeNil)
			So(out["tier"], ShouldEqual, tier.Expert)
		})

		Convey("Parse rejects unknown names", func() {
			_, err := tier.Parse("legendary")
			So(err, ShouldNotBeNil)
		})
	})
}
