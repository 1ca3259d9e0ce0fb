package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/pickem/internal/app"
	"github.com/okian/pickem/internal/domain/cursor"
	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/internal/domain/types"
)

func firstRow(v types.StandingsView) string {
	return v.Rows[0].ID
}

func TestService_Open(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		svc := newService(clock, &recorder{}, service.WithCurrentScore(900))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)

		Convey("When a board is opened with no initial data", func() {
			view, err := svc.Open(ctx, "u1", nil)
			So(err, ShouldBeNil)

			Convey("Then both conferences hold the seeded teams in order", func() {
				So(view.UserID, ShouldEqual, "u1")
				So(view.Standings, ShouldHaveLength, 2)
				east := view.Standings[0]
				So(east.Conference, ShouldEqual, model.ConferenceEastern)
				So(east.Total, ShouldEqual, 15)
				So(firstRow(east), ShouldEqual, "bos")
				So(east.Rows[0].Position, ShouldEqual, 1)
				So(east.Rows[7].Playoff, ShouldBeTrue)
				So(east.Rows[8].Playoff, ShouldBeFalse)
			})

			Convey("Then the slot sets start empty with no cursor", func() {
				So(view.Slots, ShouldHaveLength, 2)
				So(view.Slots[0].Filled(), ShouldEqual, 0)
				So(view.Cursor, ShouldBeNil)
				So(view.Props, ShouldHaveLength, 3)
				So(view.Score, ShouldEqual, 900)
				So(view.Season.Locked, ShouldBeFalse)
			})

			Convey("Then opening again returns the same board", func() {
				_, _, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "mil", 0)
				So(err, ShouldBeNil)
				again, err := svc.Open(ctx, "u1", nil)
				So(err, ShouldBeNil)
				So(firstRow(again.Standings[0]), ShouldEqual, "mil")
			})
		})

		Convey("When a board is opened with initial standings", func() {
			view, err := svc.Open(ctx, "u2", &service.Initial{
				Eastern: []model.Item{
					{ID: "a", Name: "A", Position: 3},
					{ID: "b", Name: "B", Position: 1},
					{ID: "c", Name: "C"},
				},
				Picks: []model.PropPick{{PropID: "2", Prediction: model.PickUnder}},
			})

			Convey("Then positions are normalized and picks applied", func() {
				So(err, ShouldBeNil)
				east := view.Standings[0]
				So(east.Total, ShouldEqual, 3)
				So([]string{east.Rows[0].ID, east.Rows[1].ID, east.Rows[2].ID}, ShouldResemble, []string{"b", "a", "c"})
				So(view.Standings[1].Total, ShouldEqual, 15)
				So(view.Props[1].Prediction, ShouldEqual, model.PickUnder)
			})
		})

		Convey("When initial data is invalid", func() {
			_, errSet := svc.Open(ctx, "u3", &service.Initial{AllNBA: &model.SlotSet{Category: model.CategoryAwards}})
			_, errPick := svc.Open(ctx, "u4", &service.Initial{Picks: []model.PropPick{{PropID: "1", Prediction: "sideways"}}})
			_, errProp := svc.Open(ctx, "u5", &service.Initial{Picks: []model.PropPick{{PropID: "99", Prediction: model.PickOver}}})

			Convey("Then the board is refused", func() {
				So(errors.Is(errSet, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errPick, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errProp, service.ErrPropNotFound), ShouldBeTrue)
				_, err := svc.Board(ctx, "u3")
				So(errors.Is(err, service.ErrBoardNotFound), ShouldBeTrue)
			})
		})

		Convey("When the user id is empty", func() {
			_, err := svc.Open(ctx, "", nil)

			Convey("Then it is rejected", func() {
				So(err, ShouldEqual, service.ErrInvalidUser)
			})
		})

		Convey("When a board with saved edits is closed and reopened", func() {
			_, err := svc.Open(ctx, "u1", nil)
			So(err, ShouldBeNil)
			_, _, err = svc.Reorder(ctx, "u1", model.ConferenceWestern, "okc", 0)
			So(err, ShouldBeNil)
			_, err = svc.PickProp(ctx, "u1", "3", model.PickOver)
			So(err, ShouldBeNil)
			So(svc.Close(ctx, "u1"), ShouldBeNil)

			_, ok := saved(ctx, svc, "u1", model.CategoryStandings)
			So(ok, ShouldBeTrue)
			_, ok = saved(ctx, svc, "u1", model.CategoryProps)
			So(ok, ShouldBeTrue)

			Convey("Then the saved state is restored", func() {
				view, err := svc.Open(ctx, "u1", nil)
				So(err, ShouldBeNil)
				So(firstRow(view.Standings[1]), ShouldEqual, "okc")
				So(view.Props[2].Prediction, ShouldEqual, model.PickOver)
			})
		})
	})
}

func TestService_Reorder(t *testing.T) {
	ctx := context.Background()

	Convey("Given an open board", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		events := &recorder{}
		svc := newService(clock, events)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When a team is dragged to the top", func() {
			view, changed, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "mil", 0)

			Convey("Then the list is reordered and renumbered", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				So(firstRow(view), ShouldEqual, "mil")
				So(view.Rows[1].ID, ShouldEqual, "bos")
				for i, r := range view.Rows {
					So(r.Position, ShouldEqual, i+1)
				}
			})

			Convey("Then listeners hear about it", func() {
				got := events.named(service.EventStandingsReordered)
				So(got, ShouldHaveLength, 1)
				So(got[0].data.(types.StandingsView).Conference, ShouldEqual, model.ConferenceEastern)
			})

			Convey("Then nothing is saved until the quiet period passes", func() {
				view, err := svc.Predictions(ctx, "u1")
				So(err, ShouldBeNil)
				So(view.Predictions, ShouldBeEmpty)
				So(view.NextIncomplete, ShouldEqual, model.CategoryStandings)

				clock.Advance(time.Second)
				sp, ok := saved(ctx, svc, "u1", model.CategoryStandings)
				So(ok, ShouldBeTrue)
				So(sp.Source, ShouldEqual, "autosave")
				So(sp.Version, ShouldEqual, 1)
				So(sp.Payload.(payload.Standings).Eastern[0].ID, ShouldEqual, "mil")
			})
		})

		Convey("When three moves arrive within the quiet period", func() {
			_, _, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "mil", 0)
			So(err, ShouldBeNil)
			clock.Advance(300 * time.Millisecond)
			_, _, err = svc.Reorder(ctx, "u1", model.ConferenceEastern, "cle", 0)
			So(err, ShouldBeNil)
			clock.Advance(300 * time.Millisecond)
			_, _, err = svc.Reorder(ctx, "u1", model.ConferenceWestern, "den", 0)
			So(err, ShouldBeNil)

			Convey("Then a single save holds the last state", func() {
				clock.Advance(999 * time.Millisecond)
				time.Sleep(20 * time.Millisecond)
				view, err := svc.Predictions(ctx, "u1")
				So(err, ShouldBeNil)
				So(view.Predictions, ShouldBeEmpty)

				clock.Advance(time.Millisecond)
				sp, ok := saved(ctx, svc, "u1", model.CategoryStandings)
				So(ok, ShouldBeTrue)
				So(sp.Version, ShouldEqual, 1)
				st := sp.Payload.(payload.Standings)
				So(st.Eastern[0].ID, ShouldEqual, "cle")
				So(st.Eastern[1].ID, ShouldEqual, "mil")
				So(st.Western[0].ID, ShouldEqual, "den")
				So(eventually(func() bool {
					return len(events.named(service.EventPredictionSaved)) == 1
				}), ShouldBeTrue)
			})
		})

		Convey("When the move lands where the team already is", func() {
			_, changed, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "bos", 0)

			Convey("Then nothing changes and nothing is scheduled", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				So(svc.Stats()["pendingAutosaves"], ShouldEqual, 0)
				So(events.named(service.EventStandingsReordered), ShouldBeEmpty)
			})
		})

		Convey("When the dragged id is unknown", func() {
			view, changed, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "lal", 0)

			Convey("Then the list is returned unchanged", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				So(firstRow(view), ShouldEqual, "bos")
			})
		})

		Convey("When the target is out of range", func() {
			high, _, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "bos", 99)
			So(err, ShouldBeNil)
			low, _, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "was", -4)
			So(err, ShouldBeNil)

			Convey("Then it is clamped to the ends", func() {
				So(high.Rows[len(high.Rows)-1].ID, ShouldEqual, "bos")
				So(firstRow(low), ShouldEqual, "was")
			})
		})

		Convey("When the conference or board is unknown", func() {
			_, _, errConf := svc.Reorder(ctx, "u1", model.Conference("central"), "bos", 0)
			_, _, errBoard := svc.Reorder(ctx, "ghost", model.ConferenceEastern, "bos", 0)

			Convey("Then the request is rejected", func() {
				So(errors.Is(errConf, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errBoard, service.ErrBoardNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_Drag(t *testing.T) {
	ctx := context.Background()

	Convey("Given an open board", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		svc := newService(clock, &recorder{})
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)
		east := model.ConferenceEastern

		Convey("When a gesture starts, hovers and drops", func() {
			view, _, err := svc.Drag(ctx, "u1", east, types.DragEvent{Kind: types.DragStart, ItemID: "nyk"})
			So(err, ShouldBeNil)
			So(view.Dragging, ShouldEqual, "nyk")

			_, changed, err := svc.Drag(ctx, "u1", east, types.DragEvent{Kind: types.DragOver, Index: 0})
			So(err, ShouldBeNil)
			So(changed, ShouldBeFalse)

			view, changed, err = svc.Drag(ctx, "u1", east, types.DragEvent{Kind: types.DragDrop, Index: 0})

			Convey("Then the drop moves the team and ends the gesture", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeTrue)
				So(firstRow(view), ShouldEqual, "nyk")
				So(view.Dragging, ShouldBeEmpty)
			})
		})

		Convey("When a gesture is abandoned", func() {
			_, _, err := svc.Drag(ctx, "u1", east, types.DragEvent{Kind: types.DragStart, ItemID: "nyk"})
			So(err, ShouldBeNil)
			_, _, err = svc.Drag(ctx, "u1", east, types.DragEvent{Kind: types.DragEnd})
			So(err, ShouldBeNil)
			view, changed, err := svc.Drag(ctx, "u1", east, types.DragEvent{Kind: types.DragDrop, Index: 0})

			Convey("Then a later drop does nothing", func() {
				So(err, ShouldBeNil)
				So(changed, ShouldBeFalse)
				So(firstRow(view), ShouldEqual, "bos")
			})
		})

		Convey("When the event kind is unknown", func() {
			_, _, err := svc.Drag(ctx, "u1", east, types.DragEvent{Kind: "fling"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestService_Slots(t *testing.T) {
	ctx := context.Background()
	first := func(slot int) model.SlotRef {
		return model.SlotRef{Category: model.CategoryAllNBA, Group: "first", Slot: slot}
	}

	Convey("Given an open board with the clear policy", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		events := &recorder{}
		svc := newService(clock, events, service.WithDuplicatePolicy(cursor.PolicyClear))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When nothing is active", func() {
			u, err := svc.AssignPlayer(ctx, "u1", "1")

			Convey("Then assigning does nothing", func() {
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeFalse)
				So(u.Cursor, ShouldBeNil)
			})
		})

		Convey("When a slot is activated and a player assigned", func() {
			u, err := svc.ActivateSlot(ctx, "u1", first(0))
			So(err, ShouldBeNil)
			So(u.Changed, ShouldBeTrue)
			So(*u.Cursor, ShouldResemble, first(0))

			u, err = svc.AssignPlayer(ctx, "u1", "1")

			Convey("Then the slot holds the player and the cursor clears", func() {
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeTrue)
				So(u.Cursor, ShouldBeNil)
				So(u.Set.Groups[0].Slots[0].Occupant.Name, ShouldEqual, "LeBron James")
				So(events.named(service.EventSlotsUpdated), ShouldHaveLength, 1)
			})

			Convey("Then the change autosaves after the quiet period", func() {
				clock.Advance(time.Second)
				sp, ok := saved(ctx, svc, "u1", model.CategoryAllNBA)
				So(ok, ShouldBeTrue)
				So(sp.Complete, ShouldBeFalse)
			})

			Convey("Then placing the same player again moves them", func() {
				_, err := svc.ActivateSlot(ctx, "u1", first(2))
				So(err, ShouldBeNil)
				u, err := svc.AssignPlayer(ctx, "u1", "1")
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeTrue)
				So(u.Displaced, ShouldResemble, []model.SlotRef{first(0)})
				So(u.Set.Groups[0].Slots[0].Occupant, ShouldBeNil)
			})

			Convey("Then the slot can be cleared again", func() {
				_, err := svc.ActivateSlot(ctx, "u1", first(0))
				So(err, ShouldBeNil)
				u, err := svc.ClearSlot(ctx, "u1")
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeTrue)
				So(u.Set.Groups[0].Slots[0].Occupant, ShouldBeNil)
			})
		})

		Convey("When a slot ref names nothing", func() {
			_, err := svc.ActivateSlot(ctx, "u1", first(0))
			So(err, ShouldBeNil)
			u, err := svc.ActivateSlot(ctx, "u1", model.SlotRef{Category: model.CategoryAllNBA, Group: "fourth"})

			Convey("Then the previous cursor stays", func() {
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeFalse)
				So(*u.Cursor, ShouldResemble, first(0))
			})
		})

		Convey("When the player is unknown", func() {
			_, err := svc.ActivateSlot(ctx, "u1", first(0))
			So(err, ShouldBeNil)
			_, err = svc.AssignPlayer(ctx, "u1", "404")

			Convey("Then the assignment fails", func() {
				So(errors.Is(err, service.ErrPlayerNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given an open board with the allow policy", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		svc := newService(clock, &recorder{}, service.WithDuplicatePolicy(cursor.PolicyAllow))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When one player is placed on two teams and saved", func() {
			second := model.SlotRef{Category: model.CategoryAllNBA, Group: "second", Slot: 0}
			for _, ref := range []model.SlotRef{first(0), second} {
				_, err := svc.ActivateSlot(ctx, "u1", ref)
				So(err, ShouldBeNil)
				u, err := svc.AssignPlayer(ctx, "u1", "1")
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeTrue)
			}
			_, err := svc.Save(ctx, "u1", model.CategoryAllNBA, "")

			Convey("Then the save is stored with the player on both teams", func() {
				So(err, ShouldBeNil)
				sp, ok := saved(ctx, svc, "u1", model.CategoryAllNBA)
				So(ok, ShouldBeTrue)
				teams := sp.Payload.(payload.AllNBA).Teams
				So(teams[0].Slots[0].Occupant.ID, ShouldEqual, "1")
				So(teams[1].Slots[0].Occupant.ID, ShouldEqual, "1")
			})
		})
	})

	Convey("Given an open board with the reject policy", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		svc := newService(clock, &recorder{}, service.WithDuplicatePolicy(cursor.PolicyReject))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When a player already placed is assigned elsewhere", func() {
			_, _ = svc.ActivateSlot(ctx, "u1", first(0))
			_, _ = svc.AssignPlayer(ctx, "u1", "1")
			_, _ = svc.ActivateSlot(ctx, "u1", first(1))
			u, err := svc.AssignPlayer(ctx, "u1", "1")

			Convey("Then it is rejected and the cursor stays", func() {
				So(err, ShouldBeNil)
				So(u.Changed, ShouldBeFalse)
				So(u.Rejected, ShouldBeTrue)
				So(*u.Cursor, ShouldResemble, first(1))
			})
		})
	})
}

func TestService_Props(t *testing.T) {
	ctx := context.Background()

	Convey("Given an open board", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		events := &recorder{}
		svc := newService(clock, events)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When a prop is picked", func() {
			view, err := svc.PickProp(ctx, "u1", "1", model.PickOver)

			Convey("Then it is saved without waiting", func() {
				So(err, ShouldBeNil)
				So(view[0].Prediction, ShouldEqual, model.PickOver)
				So(events.named(service.EventPropsUpdated), ShouldHaveLength, 1)

				sp, ok := saved(ctx, svc, "u1", model.CategoryProps)
				So(ok, ShouldBeTrue)
				So(sp.Source, ShouldEqual, "manual")
				So(svc.Stats()["pendingAutosaves"], ShouldEqual, 0)
			})
		})

		Convey("When the pick is malformed", func() {
			_, errPick := svc.PickProp(ctx, "u1", "1", "maybe")
			_, errProp := svc.PickProp(ctx, "u1", "42", model.PickUnder)

			Convey("Then it is rejected", func() {
				So(errors.Is(errPick, service.ErrInvalidInput), ShouldBeTrue)
				So(errors.Is(errProp, service.ErrPropNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_PropsOrdering(t *testing.T) {
	ctx := context.Background()

	Convey("Given a board saved by many workers", t, func() {
		svc := newService(clockwork.NewFakeClockAt(seasonStart), &recorder{}, service.WithWorkerCount(8))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When a prop is flipped many times in a row", func() {
			const flips = 40
			for i := 0; i < flips; i++ {
				prediction := model.PickOver
				if i%2 == 1 {
					prediction = model.PickUnder
				}
				_, err := svc.PickProp(ctx, "u1", "1", prediction)
				So(err, ShouldBeNil)
			}

			Convey("Then the stored pick is the last one made", func() {
				So(eventually(func() bool {
					return svc.Stats()["processedSaves"] == int64(flips)
				}), ShouldBeTrue)
				sp, ok := saved(ctx, svc, "u1", model.CategoryProps)
				So(ok, ShouldBeTrue)
				So(sp.Payload.(payload.Props).Picks, ShouldContain, model.PropPick{PropID: "1", Prediction: model.PickUnder})
			})
		})
	})
}

func TestService_Save(t *testing.T) {
	ctx := context.Background()

	Convey("Given an open board", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		svc := newService(clock, &recorder{})
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		Convey("When every category is saved at once", func() {
			receipt, err := svc.Save(ctx, "u1", "", "")

			Convey("Then all four categories are stored", func() {
				So(err, ShouldBeNil)
				So(receipt.RequestID, ShouldNotBeEmpty)
				So(receipt.Categories, ShouldResemble, model.Categories)
				So(eventually(func() bool {
					view, err := svc.Predictions(ctx, "u1")
					return err == nil && len(view.Predictions) == 4
				}), ShouldBeTrue)

				view, err := svc.Predictions(ctx, "u1")
				So(err, ShouldBeNil)
				So(view.Complete, ShouldBeFalse)
				So(view.NextIncomplete, ShouldEqual, model.CategoryAllNBA)
			})
		})

		Convey("When the same idempotency key is used twice", func() {
			first, err := svc.Save(ctx, "u1", model.CategoryStandings, "k-1")
			So(err, ShouldBeNil)
			second, err := svc.Save(ctx, "u1", model.CategoryStandings, "k-1")

			Convey("Then the second call is acknowledged without saving", func() {
				So(err, ShouldBeNil)
				So(second.Duplicate, ShouldBeTrue)
				So(second.RequestID, ShouldEqual, first.RequestID)
				sp, ok := saved(ctx, svc, "u1", model.CategoryStandings)
				So(ok, ShouldBeTrue)
				So(sp.Version, ShouldEqual, 1)
			})
		})

		Convey("When a pending autosave is overtaken by a manual save", func() {
			_, _, err := svc.Reorder(ctx, "u1", model.ConferenceEastern, "mil", 0)
			So(err, ShouldBeNil)
			_, err = svc.Save(ctx, "u1", model.CategoryStandings, "")
			So(err, ShouldBeNil)
			_, ok := saved(ctx, svc, "u1", model.CategoryStandings)
			So(ok, ShouldBeTrue)

			Convey("Then the later autosave of the same state is skipped", func() {
				clock.Advance(time.Second)
				So(eventually(func() bool {
					return svc.Stats()["processedSaves"] == int64(2)
				}), ShouldBeTrue)
				sp, _ := saved(ctx, svc, "u1", model.CategoryStandings)
				So(sp.Version, ShouldEqual, 1)
				So(sp.Source, ShouldEqual, "manual")
			})
		})

		Convey("When the saved set would not pass validation", func() {
			_, err := svc.Open(ctx, "u2", &service.Initial{AllNBA: &model.SlotSet{
				Category: model.CategoryAllNBA,
				Groups: []model.SlotGroup{
					{ID: "first", Slots: []model.Slot{{Role: "G"}}},
					{ID: "first", Slots: []model.Slot{{Role: "F"}}},
				},
			}})
			So(err, ShouldBeNil)
			_, err = svc.Save(ctx, "u2", model.CategoryAllNBA, "k-bad")

			Convey("Then it is refused and nothing is queued", func() {
				So(errors.Is(err, payload.ErrInvalidPayload), ShouldBeTrue)
				So(svc.Stats()["queueLength"], ShouldEqual, 0)
				view, err := svc.Predictions(ctx, "u2")
				So(err, ShouldBeNil)
				So(view.Predictions, ShouldBeEmpty)
			})

			Convey("Then the idempotency key can be used again", func() {
				again, err := svc.Save(ctx, "u2", model.CategoryAllNBA, "k-bad")
				So(errors.Is(err, payload.ErrInvalidPayload), ShouldBeTrue)
				So(again.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When the category is unknown", func() {
			_, err := svc.Save(ctx, "u1", model.Category("mvp"), "")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}

func TestService_FilterPlayers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over the default catalog", t, func() {
		svc := newService(clockwork.NewFakeClockAt(seasonStart), &recorder{})

		Convey("When filtering by name", func() {
			res := svc.FilterPlayers(ctx, "CURRY", "")

			Convey("Then matches are case-insensitive", func() {
				So(res.Items, ShouldHaveLength, 1)
				So(res.Items[0].Name, ShouldEqual, "Stephen Curry")
				So(res.Suggestions, ShouldBeEmpty)
			})
		})

		Convey("When filtering by tag only", func() {
			res := svc.FilterPlayers(ctx, "", "C")

			Convey("Then every centre is returned", func() {
				So(res.Items, ShouldNotBeEmpty)
				for _, it := range res.Items {
					So(it.Tag, ShouldEqual, "C")
				}
			})
		})

		Convey("When the query is misspelt", func() {
			res := svc.FilterPlayers(ctx, "jokik", "")

			Convey("Then close names are suggested", func() {
				So(res.Items, ShouldBeEmpty)
				So(res.Suggestions, ShouldNotBeEmpty)
				So(res.Suggestions[0].Name, ShouldEqual, "Nikola Jokic")
			})
		})
	})
}

func TestService_Close(t *testing.T) {
	ctx := context.Background()

	Convey("Given a board with an edit waiting on the quiet period", t, func() {
		clock := clockwork.NewFakeClockAt(seasonStart)
		svc := newService(clock, &recorder{})
		So(svc.Start(ctx), ShouldBeNil)
		Reset(svc.Stop)
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)
		_, _, err = svc.Reorder(ctx, "u1", model.ConferenceEastern, "mil", 0)
		So(err, ShouldBeNil)

		Convey("When the board is closed", func() {
			So(svc.Close(ctx, "u1"), ShouldBeNil)

			Convey("Then the edit is saved and the board is gone", func() {
				sp, ok := saved(ctx, svc, "u1", model.CategoryStandings)
				So(ok, ShouldBeTrue)
				So(sp.Source, ShouldEqual, "autosave")
				So(svc.Stats()["pendingAutosaves"], ShouldEqual, 0)

				_, err := svc.Board(ctx, "u1")
				So(errors.Is(err, service.ErrBoardNotFound), ShouldBeTrue)
				So(errors.Is(svc.Close(ctx, "u1"), service.ErrBoardNotFound), ShouldBeTrue)
			})
		})
	})
}

// stall blocks the worker publishing a saved prediction until it is released.
type stall struct {
	once    sync.Once
	release chan struct{}
}

func (s *stall) Publish(_, name string, _ any) {
	if name == service.EventPredictionSaved {
		<-s.release
	}
}

func (s *stall) open() { s.once.Do(func() { close(s.release) }) }

func TestService_CloseFlushErrors(t *testing.T) {
	ctx := context.Background()

	Convey("Given a board with two pending autosaves and a full queue", t, func() {
		gate := &stall{release: make(chan struct{})}
		svc := newService(clockwork.NewFakeClockAt(seasonStart), &recorder{},
			service.WithListener(gate),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
		)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() {
			gate.open()
			svc.Stop()
		})
		_, err := svc.Open(ctx, "u1", nil)
		So(err, ShouldBeNil)

		_, _, err = svc.Reorder(ctx, "u1", model.ConferenceEastern, "mil", 0)
		So(err, ShouldBeNil)
		_, err = svc.ActivateSlot(ctx, "u1", model.SlotRef{Category: model.CategoryAllNBA, Group: "first", Slot: 0})
		So(err, ShouldBeNil)
		_, err = svc.AssignPlayer(ctx, "u1", "1")
		So(err, ShouldBeNil)
		So(svc.Stats()["pendingAutosaves"], ShouldEqual, 2)

		// One save stalls the worker, one waits in the queue's hand-off and
		// the last fills the queue.
		for _, prediction := range []string{model.PickOver, model.PickUnder} {
			_, err = svc.PickProp(ctx, "u1", "1", prediction)
			So(err, ShouldBeNil)
			So(eventually(func() bool { return svc.Stats()["queueLength"] == 0 }), ShouldBeTrue)
		}
		_, err = svc.PickProp(ctx, "u1", "1", model.PickOver)
		So(err, ShouldBeNil)
		So(svc.Stats()["queueLength"], ShouldEqual, 1)

		Convey("When the board is closed", func() {
			err := svc.Close(ctx, "u1")

			Convey("Then every failed flush is reported", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "flush standings")
				So(err.Error(), ShouldContainSubstring, "flush all_nba")
				So(svc.Stats()["pendingAutosaves"], ShouldEqual, 0)
			})
		})
	})
}
