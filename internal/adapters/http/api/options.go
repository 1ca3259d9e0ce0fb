package api

import (
	"golang.org/x/time/rate"

	"github.com/okian/pickem/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithRateLimit enables the per-IP limiter. rps <= 0 leaves it disabled.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = NewIPRateLimiter(rate.Limit(rps), burst)
	}
}

// WithCORSOrigins sets the allowed origins; "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
			s.boardHandler.logger = l.Named("boards")
		}
	}
}
