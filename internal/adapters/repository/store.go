// Package repository stores the latest saved prediction per user and category.
package repository

import (
	"context"
	"time"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
)

// Snapshot is one stored prediction.
type Snapshot struct {
	UserID   string          `json:"userId"`
	Category model.Category  `json:"category"`
	Payload  payload.Payload `json:"payload"`
	Digest   string          `json:"digest"`
	Version  int             `json:"version"`
	Revision uint64          `json:"revision"`
	Source   string          `json:"source"`
	SavedAt  time.Time       `json:"savedAt"`
}

// Store provides read/write access to saved predictions.
type Store interface {
	// Put stores p for userID. When the stored payload for the same category
	// has the same content digest, or a higher revision, nothing is written
	// and false is returned.
	Put(ctx context.Context, userID string, p payload.Payload, source string, revision uint64) (Snapshot, bool, error)

	// Get returns the stored snapshot or ErrNotFound.
	Get(ctx context.Context, userID string, category model.Category) (Snapshot, error)

	// List returns a user's snapshots in category order.
	List(ctx context.Context, userID string) ([]Snapshot, error)

	// Users returns every user with at least one snapshot, sorted.
	Users(ctx context.Context) []string

	// Count returns the number of stored snapshots.
	Count(ctx context.Context) int
}
