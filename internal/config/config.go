// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and PICKEM_* env vars.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Duplicate policies for slot sets that require distinct occupants.
const (
	DuplicateAllow  = "allow"
	DuplicateClear  = "clear"
	DuplicateReject = "reject"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory save queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of save workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the idempotency-key cache for manual saves.
	DedupeSize int `koanf:"dedupe_size"`

	// SaveDebounce is the quiet period before an autosave fires.
	SaveDebounce time.Duration `koanf:"save_debounce"`

	// LockCutoff is the RFC3339 instant at which predictions lock.
	LockCutoff string `koanf:"lock_cutoff"`

	// SeedFile overrides the embedded seed catalog when set.
	SeedFile string `koanf:"seed_file"`

	// PlayoffSpots is how many standings rows are flagged as playoff places.
	PlayoffSpots int `koanf:"playoff_spots"`

	// MaxDisplayed caps the rows returned by a standings view.
	MaxDisplayed int `koanf:"max_displayed"`

	// CurrentScore is the score shown on every board until scoring exists.
	CurrentScore int `koanf:"current_score"`

	// DuplicatePolicy is one of allow, clear, reject.
	DuplicatePolicy string `koanf:"duplicate_policy"`

	// SuggestLimit caps "did you mean" suggestions on empty player searches.
	SuggestLimit int `koanf:"suggest_limit"`

	// CORSOrigins is a comma separated allow-list; "*" allows any origin.
	CORSOrigins string `koanf:"cors_origins"`

	// RateLimitRPS and RateLimitBurst configure the per-IP limiter. Zero RPS disables it.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		QueueSize:       10_000,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      50_000,
		SaveDebounce:    time.Second,
		LockCutoff:      "2024-10-22T00:00:00Z",
		PlayoffSpots:    8,
		MaxDisplayed:    15,
		CurrentScore:    1250,
		DuplicatePolicy: DuplicateClear,
		SuggestLimit:    3,
		CORSOrigins:     "*",
		RateLimitRPS:    50,
		RateLimitBurst:  100,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Cutoff parses LockCutoff.
func (c *Config) Cutoff() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(c.LockCutoff))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: lock_cutoff: %v", ErrInvalidConfig, err)
	}
	return t, nil
}

// Origins splits CORSOrigins into a trimmed list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate checks the values a running service depends on.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Cutoff(); err != nil {
		return err
	}
	switch c.DuplicatePolicy {
	case DuplicateAllow, DuplicateClear, DuplicateReject:
	default:
		return fmt.Errorf("%w: unknown duplicate_policy %q", ErrInvalidConfig, c.DuplicatePolicy)
	}
	if c.SaveDebounce <= 0 {
		return fmt.Errorf("%w: save_debounce must be positive", ErrInvalidConfig)
	}
	if c.PlayoffSpots < 0 || c.MaxDisplayed <= 0 {
		return fmt.Errorf("%w: playoff_spots and max_displayed must be positive", ErrInvalidConfig)
	}
	return nil
}
