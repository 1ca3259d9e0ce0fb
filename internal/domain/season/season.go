// Package season decides whether predictions may still change.
package season

import "time"

// IsLocked reports whether now is at or after cutoff. Both instants carry their
// own location, so the comparison is timezone independent.
func IsLocked(now, cutoff time.Time) bool {
	return !now.Before(cutoff)
}

// Status is what a board shows about the lock.
type Status struct {
	Locked bool      `json:"locked"`
	Cutoff time.Time `json:"cutoff"`
	// Remaining is zero once locked.
	Remaining time.Duration `json:"remainingNs"`
}

// StatusAt builds the lock status for now.
func StatusAt(now, cutoff time.Time) Status {
	s := Status{Locked: IsLocked(now, cutoff), Cutoff: cutoff}
	if !s.Locked {
		s.Remaining = cutoff.Sub(now)
	}
	return s
}
