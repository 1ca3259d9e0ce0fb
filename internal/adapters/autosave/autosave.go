// Package autosave debounces board changes before they are handed to the save
// pipeline. Each (user, category) key has its own trailing-edge timer: every
// change restarts it and only the snapshot from the last change is saved once
// the key has been quiet for the configured period.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

const defaultQuietPeriod = time.Second

// Source says what triggered a save.
type Source string

const (
	SourceAutosave Source = "autosave"
	SourceManual   Source = "manual"
)

// Key identifies one debounced stream of changes.
type Key struct {
	UserID   string
	Category model.Category
}

// Snapshot is a category payload stamped with the revision of the board state
// it was taken from. Revisions only grow, so a store can drop a snapshot that
// reaches it after a newer one for the same key.
type Snapshot struct {
	Payload  payload.Payload
	Revision uint64
}

// SaveFunc receives a snapshot once it should be persisted.
type SaveFunc func(ctx context.Context, key Key, snapshot Snapshot, source Source) error

type pending struct {
	timer    clockwork.Timer
	done     chan struct{}
	snapshot Snapshot
}

// Debouncer owns one timer per key.
type Debouncer struct {
	clock  clockwork.Clock
	quiet  time.Duration
	save   SaveFunc
	logger logger.Logger

	mu      sync.Mutex
	timers  map[Key]*pending
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Debouncer that hands snapshots to save.
func New(save SaveFunc, opts ...Option) *Debouncer {
	d := &Debouncer{
		clock:  clockwork.NewRealClock(),
		quiet:  defaultQuietPeriod,
		save:   save,
		logger: logger.Nop(),
		timers: make(map[Key]*pending),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify records a change for key. Any armed timer for the key is cancelled
// and a new one started; snapshot replaces the previously recorded one.
func (d *Debouncer) Notify(ctx context.Context, key Key, snapshot Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.timers[key]; ok {
		cancelPending(prev)
		metrics.RecordDebounceRestart()
		d.logger.Debug(ctx, "autosave restarted",
			logger.String("user", key.UserID),
			logger.String("category", string(key.Category)))
	}

	p := &pending{
		timer:    d.clock.NewTimer(d.quiet),
		done:     make(chan struct{}),
		snapshot: snapshot,
	}
	d.timers[key] = p
	metrics.UpdateDebouncePending(len(d.timers))

	d.wg.Add(1)
	go d.wait(context.WithoutCancel(ctx), key, p)
}

func (d *Debouncer) wait(ctx context.Context, key Key, p *pending) {
	defer d.wg.Done()

	select {
	case <-p.timer.Chan():
	case <-p.done:
		return
	}

	// A replacement may have raced with the fire; only the current entry saves.
	d.mu.Lock()
	if d.timers[key] != p {
		d.mu.Unlock()
		return
	}
	delete(d.timers, key)
	metrics.UpdateDebouncePending(len(d.timers))
	d.mu.Unlock()

	if err := d.save(ctx, key, p.snapshot, SourceAutosave); err != nil {
		d.logger.Error(ctx, "autosave failed",
			logger.String("user", key.UserID),
			logger.String("category", string(key.Category)),
			logger.Error(err))
	}
}

// SaveNow saves snapshot immediately. A timer already armed for key keeps
// running and will still save its own snapshot when it expires.
func (d *Debouncer) SaveNow(ctx context.Context, key Key, snapshot Snapshot) error {
	return d.save(ctx, key, snapshot, SourceManual)
}

// Flush fires every armed timer now, in no particular order.
func (d *Debouncer) Flush(ctx context.Context) {
	d.mu.Lock()
	due := d.timers
	d.timers = make(map[Key]*pending)
	for _, p := range due {
		cancelPending(p)
	}
	metrics.UpdateDebouncePending(0)
	d.mu.Unlock()

	for key, p := range due {
		if err := d.save(ctx, key, p.snapshot, SourceAutosave); err != nil {
			d.logger.Error(ctx, "autosave flush failed",
				logger.String("user", key.UserID),
				logger.String("category", string(key.Category)),
				logger.Error(err))
		}
	}
}

// FlushKey saves the snapshot armed for key now instead of waiting for the
// quiet period. It reports whether a timer was armed.
func (d *Debouncer) FlushKey(ctx context.Context, key Key) (bool, error) {
	d.mu.Lock()
	p, ok := d.timers[key]
	if ok {
		cancelPending(p)
		delete(d.timers, key)
		metrics.UpdateDebouncePending(len(d.timers))
	}
	d.mu.Unlock()

	if !ok {
		return false, nil
	}
	return true, d.save(ctx, key, p.snapshot, SourceAutosave)
}

// Cancel drops the armed timer for key, if any.
func (d *Debouncer) Cancel(key Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.timers[key]
	if !ok {
		return false
	}
	cancelPending(p)
	delete(d.timers, key)
	metrics.UpdateDebouncePending(len(d.timers))
	return true
}

// Pending returns how many keys have an armed timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every armed timer without saving and waits for the timer
// goroutines to exit. Notify is ignored afterwards.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	for key, p := range d.timers {
		cancelPending(p)
		delete(d.timers, key)
	}
	metrics.UpdateDebouncePending(0)
	d.mu.Unlock()

	d.wg.Wait()
}

func cancelPending(p *pending) {
	stopAndDrainTimer(p.timer)
	close(p.done)
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
