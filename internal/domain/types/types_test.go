package types_test

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/reorder"
	types "github.com/okian/pickem/internal/domain/types"
)

func TestViews(t *testing.T) {
	Convey("Given a standings view", t, func() {
		items := []model.Item{{ID: "BOS", Name: "Boston Celtics", Position: 1}, {ID: "NYK", Name: "New York Knicks", Position: 2}}
		v := types.StandingsView{
			Conference: model.ConferenceEastern,
			Rows:       reorder.View(items, 1, 15),
			Total:      len(items),
		}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(v)
			So(err, ShouldBeNil)

			var decoded map[string]any
			So(json.Unmarshal(raw, &decoded), ShouldBeNil)

			Convey("Then rows flatten the item and carry the playoff flag", func() {
				rows := decoded["rows"].([]any)
				first := rows[0].(map[string]any)
				So(first["id"], ShouldEqual, "BOS")
				So(first["position"], ShouldEqual, 1.0)
				So(first["playoff"], ShouldBeTrue)
				So(rows[1].(map[string]any)["playoff"], ShouldBeFalse)
				So(decoded, ShouldNotContainKey, "dragging")
			})
		})
	})

	Convey("Given a prop view without a pick", t, func() {
		v := types.PropView{Prop: model.Prop{ID: "lebron-ppg", Label: "LeBron PPG", Line: 25.5}}

		Convey("Then the prediction is omitted", func() {
			raw, err := json.Marshal(v)
			So(err, ShouldBeNil)
			So(string(raw), ShouldNotContainSubstring, "prediction")
			So(string(raw), ShouldContainSubstring, `"line":25.5`)
		})
	})

	Convey("Given a duplicate save receipt", t, func() {
		r := types.SaveReceipt{RequestID: "r1", Categories: []model.Category{model.CategoryProps}, Duplicate: true}

		Convey("Then the duplicate flag is encoded", func() {
			raw, err := json.Marshal(r)
			So(err, ShouldBeNil)
			So(string(raw), ShouldContainSubstring, `"duplicate":true`)
			So(string(raw), ShouldContainSubstring, `"categories":["props"]`)
		})
	})
}
