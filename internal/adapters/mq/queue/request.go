package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/payload"
)

// Source says what produced a save request.
type Source string

const (
	SourceAutosave Source = "autosave"
	SourceManual   Source = "manual"
)

// SaveRequest asks the workers to persist one category snapshot for a user.
// Revision orders requests for the same user and category; workers may finish
// them in any order.
type SaveRequest struct {
	ID          string
	UserID      string
	Category    model.Category
	Payload     payload.Payload
	Revision    uint64
	Source      Source
	RequestedAt time.Time
}

// NewSaveRequest stamps a request with a fresh id.
func NewSaveRequest(userID string, p payload.Payload, revision uint64, source Source, at time.Time) SaveRequest {
	return SaveRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    p.Category(),
		Payload:     p,
		Revision:    revision,
		Source:      source,
		RequestedAt: at,
	}
}
