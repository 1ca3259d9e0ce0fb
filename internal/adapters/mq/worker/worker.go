// Package worker drains the save queue and writes predictions to the store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pickem/internal/adapters/mq/queue"
	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/domain/payload"
	"github.com/okian/pickem/pkg/logger"
	"github.com/okian/pickem/pkg/metrics"
)

const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Request abstracts what workers read off the queue.
type Request = queue.SaveRequest

// Writer persists a validated payload.
type Writer interface {
	Put(ctx context.Context, userID string, p payload.Payload, source string, revision uint64) (repository.Snapshot, bool, error)
}

// Queue defines how workers receive requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Request
}

// SavedFunc is told about every request that reached the store.
// written is false when the store already held identical content.
type SavedFunc func(ctx context.Context, r Request, snap repository.Snapshot, written bool)

// Worker processes save requests.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing save requests.
type InMemoryWorker struct {
	queue   Queue
	writer  Writer
	name    string
	onSaved SavedFunc

	processed *atomic.Int64

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	base   logger.Logger
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, writer Writer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		writer:    writer,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.base = w.logger
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			if err := w.process(ctx, r); err != nil {
				w.logger.Error(ctx, "error processing save request", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, r Request) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if r.Payload == nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "empty_payload")
		return fmt.Errorf("request %s: %w", r.ID, payload.ErrInvalidPayload)
	}

	if err := r.Payload.Validate(); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "invalid_payload")
		w.logger.Warn(ctx, "rejected save request",
			logger.String("requestID", r.ID),
			logger.String("user", r.UserID),
			logger.String("category", string(r.Category)),
			logger.Error(err),
		)
		return fmt.Errorf("request %s: %w", r.ID, err)
	}

	snap, written, err := w.writer.Put(ctx, r.UserID, r.Payload, string(r.Source), r.Revision)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("store write for request %s: %w", r.ID, err)
	}

	w.processed.Add(1)
	if written {
		metrics.RecordSave(string(r.Category), string(r.Source))
		w.logger.Debug(ctx, "prediction saved",
			logger.String("user", r.UserID),
			logger.String("category", string(r.Category)),
			logger.Int("version", snap.Version),
		)
	}

	if w.onSaved != nil {
		w.onSaved(ctx, r, snap, written)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed *atomic.Int64
	logger    logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 uses runtime.NumCPU().
// opts apply to every worker; names are assigned by the pool.
func NewPool(workerCount int, q Queue, writer Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := make([]Option, 0, len(opts)+1)
		workerOpts = append(workerOpts, opts...)
		workerOpts = append(workerOpts, WithName("worker-"+strconv.Itoa(i)))

		w := NewInMemoryWorker(q, writer, workerOpts...)
		w.processed = pool.processed
		pool.workers[i] = w
	}
	pool.logger = pool.workers[0].base.Named("worker-pool")

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns how many requests reached the store.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Stop signals every worker and waits briefly for each.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.signal()
	}

	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown closes the queue so workers drain what is left, then waits for
// them until ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
