package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/pickem/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("Then it starts empty", func() {
			So(d.Size(), ShouldEqual, 0)
		})

		Convey("When a key is recorded for the first time", func() {
			id, seen := d.SeenAndRecord(ctx, "key-1", "req-a")

			Convey("Then it is reported as new", func() {
				So(seen, ShouldBeFalse)
				So(id, ShouldEqual, "req-a")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And a retry with the same key returns the first request id", func() {
				id, seen := d.SeenAndRecord(ctx, "key-1", "req-b")
				So(seen, ShouldBeTrue)
				So(id, ShouldEqual, "req-a")
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("And after Unrecord the key is new again", func() {
				d.Unrecord(ctx, "key-1")
				id, seen := d.SeenAndRecord(ctx, "key-1", "req-c")
				So(seen, ShouldBeFalse)
				So(id, ShouldEqual, "req-c")
			})
		})

		Convey("When unrecording an unknown key", func() {
			d.Unrecord(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(2))
		d.SeenAndRecord(ctx, "a", "1")
		d.SeenAndRecord(ctx, "b", "2")
		d.SeenAndRecord(ctx, "c", "3")

		Convey("Then the oldest key is evicted first", func() {
			So(d.Size(), ShouldEqual, 2)
			_, seenA := d.SeenAndRecord(ctx, "a", "4")
			So(seenA, ShouldBeFalse)
			_, seenC := d.SeenAndRecord(ctx, "c", "5")
			So(seenC, ShouldBeTrue)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 500; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k-%d", i), "r")
		}

		Convey("Then every key is kept", func() {
			So(d.Size(), ShouldEqual, 500)
		})
	})

	Convey("Given concurrent callers racing on one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, seen := d.SeenAndRecord(ctx, "same", fmt.Sprint(i)); !seen {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one wins", func() {
			So(fresh, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}
