package ws

import (
	"time"

	"github.com/okian/pickem/pkg/logger"
)

// Option configures a Hub.
type Option func(*Hub)

// WithOrigins restricts which Origin headers may connect; "*" allows any.
func WithOrigins(origins []string) Option {
	return func(h *Hub) {
		h.origins = append([]string(nil), origins...)
	}
}

// WithPingInterval sets how often idle connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithSendBuffer sets how many frames may queue per connection before it is
// considered too slow.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
