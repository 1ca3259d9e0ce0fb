package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/okian/pickem/internal/adapters/mq/queue"
	worker "github.com/okian/pickem/internal/adapters/mq/worker"
	"github.com/okian/pickem/internal/adapters/repository"
	model "github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
)

// Mock implementations for testing.
type mockQueue struct {
	ch chan queue.SaveRequest
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.SaveRequest, 128)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.SaveRequest {
	return mq.ch
}

func (mq *mockQueue) Close() error {
	close(mq.ch)
	return nil
}

func (mq *mockQueue) add(r queue.SaveRequest) { //nolint:gocritic // hugeParam: passed by value for channel semantics
	mq.ch <- r
}

type mockWriter struct {
	mu     sync.Mutex
	writes map[string]payload.Payload
	errs   map[string]error
}

func newMockWriter() *mockWriter {
	return &mockWriter{
		writes: make(map[string]payload.Payload),
		errs:   make(map[string]error),
	}
}

func (mw *mockWriter) Put(_ context.Context, userID string, p payload.Payload, source string, revision uint64) (repository.Snapshot, bool, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	if err, ok := mw.errs[userID]; ok {
		return repository.Snapshot{}, false, err
	}
	mw.writes[userID] = p
	return repository.Snapshot{UserID: userID, Category: p.Category(), Payload: p, Version: 1, Source: source, Revision: revision}, true, nil
}

func (mw *mockWriter) setError(userID string, err error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.errs[userID] = err
}

func (mw *mockWriter) get(userID string) (payload.Payload, bool) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	p, ok := mw.writes[userID]
	return p, ok
}

func validRequest(user string) queue.SaveRequest {
	return pickRequest(user, model.PickOver, 1)
}

func pickRequest(user, prediction string, revision uint64) queue.SaveRequest {
	p := payload.Props{Picks: []model.PropPick{{PropID: "lebron-ppg", Prediction: prediction}}}
	return queue.NewSaveRequest(user, p, revision, queue.SourceAutosave, time.Now())
}

func invalidRequest(user string) queue.SaveRequest {
	p := payload.Props{Picks: []model.PropPick{{PropID: "lebron-ppg", Prediction: "sideways"}}}
	return queue.NewSaveRequest(user, p, 1, queue.SourceManual, time.Now())
}

func eventually(check func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running InMemoryWorker", t, func() {
		q := newMockQueue()
		writer := newMockWriter()
		var saved []string
		var mu sync.Mutex
		w := worker.NewInMemoryWorker(q, writer,
			worker.WithName("test-worker"),
			worker.WithOnSaved(func(_ context.Context, r worker.Request, _ repository.Snapshot, written bool) {
				mu.Lock()
				defer mu.Unlock()
				if written {
					saved = append(saved, r.UserID)
				}
			}),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a valid request arrives", func() {
			q.add(validRequest("u1"))

			convey.Convey("Then it is written and reported", func() {
				convey.So(eventually(func() bool { _, ok := writer.get("u1"); return ok }), convey.ShouldBeTrue)
				convey.So(eventually(func() bool {
					mu.Lock()
					defer mu.Unlock()
					return len(saved) == 1 && saved[0] == "u1"
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the payload fails validation", func() {
			q.add(invalidRequest("u2"))
			q.add(validRequest("u3"))

			convey.Convey("Then it is dropped and later requests still flow", func() {
				convey.So(eventually(func() bool { _, ok := writer.get("u3"); return ok }), convey.ShouldBeTrue)
				_, ok := writer.get("u2")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When the store fails", func() {
			writer.setError("u4", errors.New("disk full"))
			q.add(validRequest("u4"))
			q.add(validRequest("u5"))

			convey.Convey("Then nothing is recorded for that user", func() {
				convey.So(eventually(func() bool { _, ok := writer.get("u5"); return ok }), convey.ShouldBeTrue)
				_, ok := writer.get("u4")
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer shutdownCancel()

			err := w.Shutdown(shutdownCtx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool on a real queue and store", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		store := repository.NewMemoryStore(ctx)
		defer store.Close()

		pool := worker.NewPool(4, q, store)
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many producers enqueue concurrently", func() {
			const producers, perProducer = 5, 20
			var wg sync.WaitGroup
			for i := 0; i < producers; i++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for j := 0; j < perProducer; j++ {
						q.Enqueue(ctx, validRequest(fmt.Sprintf("user-%d-%d", id, j)))
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every request reaches the store", func() {
				convey.So(eventually(func() bool { return store.Count(ctx) == producers*perProducer }), convey.ShouldBeTrue)
				convey.So(eventually(func() bool { return pool.Processed() == producers*perProducer }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the same content is saved twice", func() {
			q.Enqueue(ctx, validRequest("dup"))
			q.Enqueue(ctx, validRequest("dup"))

			convey.Convey("Then only one version is stored", func() {
				convey.So(eventually(func() bool { return pool.Processed() == 2 }), convey.ShouldBeTrue)
				snap, err := store.Get(ctx, "dup", model.CategoryProps)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Version, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When workers race on one key with revisions arriving out of order", func() {
			const revisions = 40
			for rev := uint64(revisions); rev >= 1; rev-- {
				prediction := model.PickOver
				if rev%2 == 0 {
					prediction = model.PickUnder
				}
				q.Enqueue(ctx, pickRequest("racer", prediction, rev))
			}

			convey.Convey("Then the newest revision is what stays stored", func() {
				convey.So(eventually(func() bool { return pool.Processed() == revisions }), convey.ShouldBeTrue)
				snap, err := store.Get(ctx, "racer", model.CategoryProps)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Revision, convey.ShouldEqual, uint64(revisions))
				props, ok := snap.Payload.(payload.Props)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(props.Picks[0].Prediction, convey.ShouldEqual, model.PickUnder)
			})
		})

		convey.Convey("When shutting down with queued requests", func() {
			for i := 0; i < 10; i++ {
				q.Enqueue(ctx, validRequest(fmt.Sprintf("late-%d", i)))
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed and drained", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
				convey.So(store.Count(ctx), convey.ShouldEqual, 10)
			})
		})
	})

	convey.Convey("Given a pool built with a default count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockWriter())

		convey.Convey("Then it has at least one worker", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
