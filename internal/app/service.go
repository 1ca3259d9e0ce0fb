// Package service keeps one prediction board per user and connects board
// edits to the save pipeline: autosave debouncer, save queue, workers and
// the prediction store.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/pickem/internal/adapters/autosave"
	"github.com/okian/pickem/internal/adapters/mq/queue"
	"github.com/okian/pickem/internal/adapters/mq/worker"
	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/adapters/seed"
	"github.com/okian/pickem/internal/domain/cursor"
	"github.com/okian/pickem/internal/domain/dedupe"
	"github.com/okian/pickem/internal/domain/registry"
	"github.com/okian/pickem/internal/domain/season"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

// Board events published to the Listener.
const (
	EventStandingsReordered = "standings.reordered"
	EventSlotsUpdated       = "slots.updated"
	EventPropsUpdated       = "props.updated"
	EventPredictionSaved    = "prediction.saved"
)

// Listener receives board events. Publish is called synchronously from the
// operation that caused the event and must not block for long.
type Listener interface {
	Publish(userID, event string, data any)
}

type nopListener struct{}

func (nopListener) Publish(string, string, any) {}

// Service owns the boards and the save pipeline.
type Service struct {
	mu     sync.RWMutex
	boards map[string]*board

	// Core components
	data      *seed.Data
	catalog   *registry.Catalog
	deduper   dedupe.Deduper
	saveQueue *queue.InMemoryQueue
	pool      *worker.Pool
	store     *repository.MemoryStore
	debouncer *autosave.Debouncer
	cancel    context.CancelFunc

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	saveDebounce time.Duration
	cutoff       time.Time
	policy       cursor.Policy
	playoffSpots int
	maxDisplayed int
	currentScore int
	suggestLimit int

	clock    clockwork.Clock
	tracer   trace.Tracer
	listener Listener

	// revision numbers every snapshot handed to the save pipeline.
	revision atomic.Uint64

	started bool
	logger  logger.Logger
}

// New constructs a Service over the given catalog.
func New(data *seed.Data, opts ...Option) *Service {
	s := &Service{
		boards:       make(map[string]*board),
		data:         data,
		catalog:      registry.New(data.Players),
		workerCount:  runtime.NumCPU(),
		queueSize:    10000,
		dedupeSize:   50000,
		saveDebounce: time.Second,
		cutoff:       time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
		policy:       cursor.PolicyClear,
		playoffSpots: 8,
		maxDisplayed: 15,
		currentScore: 1250,
		suggestLimit: 3,
		clock:        clockwork.NewRealClock(),
		tracer:       otel.Tracer("pickem/app"),
		listener:     nopListener{},
		logger:       logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start builds the save pipeline and stores the seeded comparison users.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting board service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.store = repository.NewMemoryStore(runCtx, repository.WithClock(s.clock))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.saveQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.saveQueue, s.store,
		worker.WithLogger(s.logger),
		worker.WithOnSaved(s.onSaved),
	)
	s.pool.Start(runCtx)

	s.debouncer = autosave.New(s.save,
		autosave.WithClock(s.clock),
		autosave.WithQuietPeriod(s.saveDebounce),
		autosave.WithLogger(s.logger.Named("autosave")),
	)

	if err := s.seedUsers(runCtx); err != nil {
		s.debouncer.Stop()
		_ = s.pool.Shutdown(runCtx)
		_ = s.store.Close()
		cancel()
		return err
	}

	s.started = true
	s.logger.Info(ctx, "board service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("saveDebounce", s.saveDebounce.String()),
		logger.String("lockCutoff", s.cutoff.Format(time.RFC3339)),
	)

	return nil
}

func (s *Service) seedUsers(ctx context.Context) error {
	for _, u := range s.data.Users {
		for _, p := range u.Predictions {
			if _, _, err := s.store.Put(ctx, u.ID, p, "seed", 0); err != nil {
				return fmt.Errorf("seed predictions for %s: %w", u.ID, err)
			}
		}
	}
	return nil
}

// Stop saves any pending autosaves, drains the save queue and stops the
// workers.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	debouncer, pool, store, cancel := s.debouncer, s.pool, s.store, s.cancel
	s.mu.Unlock()

	// The debouncer's callback takes s.mu, so the pipeline is torn down
	// without holding it.
	ctx := context.Background()
	s.logger.Info(ctx, "stopping board service...")

	debouncer.Flush(ctx)
	debouncer.Stop()

	if err := pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
	}
	_ = store.Close()
	cancel()

	s.logger.Info(ctx, "board service stopped")
}

// save is the debouncer's callback: it turns a snapshot into a queued save
// request.
func (s *Service) save(ctx context.Context, key autosave.Key, snap autosave.Snapshot, source autosave.Source) error {
	s.mu.RLock()
	q := s.saveQueue
	s.mu.RUnlock()

	if q == nil || q.IsClosed() {
		return ErrNotStarted
	}

	req := queue.NewSaveRequest(key.UserID, snap.Payload, snap.Revision, queue.Source(source), s.clock.Now())
	if !q.Enqueue(ctx, req) {
		return fmt.Errorf("%w: %s/%s", ErrBackpressure, key.UserID, key.Category)
	}
	return nil
}

func (s *Service) onSaved(_ context.Context, r worker.Request, snap repository.Snapshot, written bool) {
	if !written {
		return
	}
	s.listener.Publish(r.UserID, EventPredictionSaved, savedPrediction(snap))
}

// Season reports the lock state at the service clock's now.
func (s *Service) Season() season.Status {
	return season.StatusAt(s.clock.Now(), s.cutoff)
}

func (s *Service) locked() bool {
	return season.IsLocked(s.clock.Now(), s.cutoff)
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"boardsOpen":   len(s.boards),
		"saveDebounce": s.saveDebounce.String(),
		"season":       s.Season(),
	}

	if s.started {
		queueLen := s.saveQueue.Len(ctx)
		stored := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["pendingAutosaves"] = s.debouncer.Pending()
		stats["storedPredictions"] = stored
		stats["storedUsers"] = len(s.store.Users(ctx))
		stats["idempotencyKeys"] = s.deduper.Size()
		stats["processedSaves"] = s.pool.Processed()

		metrics.UpdateStoreSnapshots(stored)
	}

	return stats
}
