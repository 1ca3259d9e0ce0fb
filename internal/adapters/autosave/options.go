package autosave

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/pickem/pkg/logger"
)

// Option applies a configuration option to the Debouncer.
type Option func(*Debouncer)

// WithClock sets the clock timers are created on.
func WithClock(clock clockwork.Clock) Option {
	return func(d *Debouncer) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithQuietPeriod sets how long a key must be idle before it is saved.
func WithQuietPeriod(quiet time.Duration) Option {
	return func(d *Debouncer) {
		if quiet > 0 {
			d.quiet = quiet
		}
	}
}

// WithLogger sets a custom logger for the Debouncer.
func WithLogger(l logger.Logger) Option {
	return func(d *Debouncer) {
		if l != nil {
			d.logger = l
		}
	}
}
