package service

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/pickem/internal/domain/cursor"
	"github.com/okian/pickem/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of save workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued save requests.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for the season lock, debounce timers and
// save timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTracer sets the tracer for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithSaveDebounce sets the autosave quiet period.
func WithSaveDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.saveDebounce = d
		}
	}
}

// WithLockCutoff sets the instant predictions lock.
func WithLockCutoff(cutoff time.Time) Option {
	return func(s *Service) {
		s.cutoff = cutoff
	}
}

// WithDuplicatePolicy sets how a player already placed in a unique slot set
// is handled.
func WithDuplicatePolicy(policy cursor.Policy) Option {
	return func(s *Service) {
		if policy != "" {
			s.policy = policy
		}
	}
}

// WithPlayoffSpots sets how many standings rows are flagged as playoff places.
func WithPlayoffSpots(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.playoffSpots = n
		}
	}
}

// WithMaxDisplayed caps the standings rows returned per conference.
func WithMaxDisplayed(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDisplayed = n
		}
	}
}

// WithCurrentScore sets the score shown on every board.
func WithCurrentScore(score int) Option {
	return func(s *Service) {
		s.currentScore = score
	}
}

// WithSuggestLimit sets how many near matches an empty player search offers.
func WithSuggestLimit(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.suggestLimit = n
		}
	}
}

// WithListener registers the receiver of board events.
func WithListener(l Listener) Option {
	return func(s *Service) {
		if l != nil {
			s.listener = l
		}
	}
}
