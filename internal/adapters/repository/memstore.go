package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/pkg/metrics"
)

// MemoryStore keeps the latest snapshot per (user, category) in memory.
// Each write bumps the category's version; identical content is skipped.
type MemoryStore struct {
	mu     sync.RWMutex
	byUser map[string]map[model.Category]Snapshot
	count  int
	closed bool
	clock  clockwork.Clock

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a store and starts its metrics updater, which
// runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byUser:                make(map[string]map[model.Category]Snapshot),
		clock:                 clockwork.NewRealClock(),
		metricsUpdateInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	metrics.UpdateStoreSnapshots(0)
	s.startMetricsUpdater(ctx)

	return s
}

// Put stores p for userID unless its digest matches the stored one or a later
// revision is already stored. Writes reach the store from several workers, so
// revision, not arrival order, decides which snapshot is the latest.
func (s *MemoryStore) Put(ctx context.Context, userID string, p payload.Payload, source string, revision uint64) (Snapshot, bool, error) {
	if userID == "" {
		return Snapshot{}, false, ErrInvalidUser
	}
	if p == nil {
		return Snapshot{}, false, ErrNilPayload
	}

	start := time.Now()
	digest, err := payload.Digest(p)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("digest %s for %s: %w", p.Category(), userID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Snapshot{}, false, ErrClosed
	}

	byCat, ok := s.byUser[userID]
	if !ok {
		byCat = make(map[model.Category]Snapshot)
		s.byUser[userID] = byCat
	}

	prev, had := byCat[p.Category()]
	if had && revision < prev.Revision {
		metrics.RecordStoreStale()
		return prev, false, nil
	}
	if had && prev.Digest == digest {
		if revision > prev.Revision {
			prev.Revision = revision
			byCat[p.Category()] = prev
		}
		metrics.RecordStoreSkip()
		return prev, false, nil
	}

	snap := Snapshot{
		UserID:   userID,
		Category: p.Category(),
		Payload:  p,
		Digest:   digest,
		Version:  prev.Version + 1,
		Revision: revision,
		Source:   source,
		SavedAt:  s.clock.Now(),
	}
	byCat[p.Category()] = snap
	if !had {
		s.count++
	}

	metrics.RecordStoreWrite(float64(time.Since(start).Milliseconds()))
	return snap, true, nil
}

// Get returns the stored snapshot for userID and category.
func (s *MemoryStore) Get(ctx context.Context, userID string, category model.Category) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.byUser[userID][category]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s/%s", ErrNotFound, userID, category)
	}
	return snap, nil
}

// List returns userID's snapshots in category order. An unknown user has none.
func (s *MemoryStore) List(ctx context.Context, userID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCat := s.byUser[userID]
	out := make([]Snapshot, 0, len(byCat))
	for _, c := range model.Categories {
		if snap, ok := byCat[c]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Users returns the ids of users with stored predictions, sorted.
func (s *MemoryStore) Users(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.byUser))
	for id, byCat := range s.byUser {
		if len(byCat) > 0 {
			users = append(users, id)
		}
	}
	slices.Sort(users)
	return users
}

// Count returns the number of stored snapshots.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Close stops the metrics updater. Later writes fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateStoreSnapshots(s.Count(ctx))
			}
		}
	}()
}
