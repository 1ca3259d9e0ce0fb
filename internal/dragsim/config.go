// Package dragsim drives random drag gestures against a running board server
// and checks every response against a local model of the standings.
package dragsim

import (
	"errors"
	"time"

	"github.com/okian/pickem/internal/domain/model"
)

// Errors reported by Run.
var (
	ErrUnhealthy = errors.New("server unhealthy")
	ErrInvariant = errors.New("invariant violated")
	ErrTruncated = errors.New("standings truncated")
)

// Gesture kinds.
const (
	KindReorder = "reorder" // one reorder call
	KindDrag    = "drag"    // start, over, drop
	KindCancel  = "cancel"  // start, over, end
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Users    int           // Number of simulated users
	Gestures int           // Gestures per user
	Workers  int           // Users simulated concurrently
	Timeout  time.Duration // HTTP request timeout
	Seed     int64         // Faker seed; runs with the same seed replay the same gestures
	SaveWait time.Duration // How long to wait for the manual save to land
	Output   string        // Optional JSON report path
	Verbose  bool          // Log every gesture
}

// Gesture is one simulated pointer interaction on a conference list.
type Gesture struct {
	Conference model.Conference `json:"conference"`
	Kind       string           `json:"kind"`
	ItemID     string           `json:"itemId"`
	Target     int              `json:"target"`
}

// Stats holds run statistics.
type Stats struct {
	Users      int           `json:"users"`
	Gestures   int           `json:"gestures"`
	Moved      int           `json:"moved"`
	Noops      int           `json:"noops"`
	Cancelled  int           `json:"cancelled"`
	Failed     int           `json:"failed"`
	Mismatches int           `json:"mismatches"`
	Saved      int           `json:"saved"`
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	Duration   time.Duration `json:"duration"`
}
