// Package types contains the views the board service hands to its callers.
package types

import (
	"time"

	"github.com/okian/pickem/internal/domain/model"
	"github.com/okian/pickem/internal/domain/reorder"
	"github.com/okian/pickem/internal/domain/season"
)

// StandingsView is one conference as displayed.
type StandingsView struct {
	Conference model.Conference `json:"conference"`
	Rows       []reorder.Row    `json:"rows"`
	Total      int              `json:"total"`
	Dragging   string           `json:"dragging,omitempty"`
}

// PropView is a prop line with the user's pick, if any.
type PropView struct {
	model.Prop
	Prediction string `json:"prediction,omitempty"`
}

// BoardView is everything one user is editing.
type BoardView struct {
	UserID    string          `json:"userId"`
	Standings []StandingsView `json:"standings"`
	Slots     []model.SlotSet `json:"slots"`
	Cursor    *model.SlotRef  `json:"cursor,omitempty"`
	Props     []PropView      `json:"props"`
	Season    season.Status   `json:"season"`
	Score     int             `json:"score"`
}

// SlotUpdate reports the effect of a cursor operation.
type SlotUpdate struct {
	Changed   bool            `json:"changed"`
	Rejected  bool            `json:"rejected,omitempty"`
	Displaced []model.SlotRef `json:"displaced,omitempty"`
	Cursor    *model.SlotRef  `json:"cursor,omitempty"`
	Set       *model.SlotSet  `json:"set,omitempty"`
}

// Drag gesture kinds.
const (
	DragStart = "start"
	DragOver  = "over"
	DragDrop  = "drop"
	DragEnd   = "end"
)

// DragEvent is one step of a pointer gesture over a standings list.
type DragEvent struct {
	Kind   string `json:"kind"`
	ItemID string `json:"itemId,omitempty"`
	Index  int    `json:"index"`
}

// PlayerSearch is a filter result. Suggestions are only filled when Items is
// empty and a query was given.
type PlayerSearch struct {
	Items       []model.Item `json:"items"`
	Suggestions []model.Item `json:"suggestions,omitempty"`
}

// SaveReceipt acknowledges a manual save.
type SaveReceipt struct {
	RequestID  string           `json:"requestId"`
	Categories []model.Category `json:"categories"`
	Duplicate  bool             `json:"duplicate,omitempty"`
}

// SavedPrediction is one stored category.
type SavedPrediction struct {
	Category model.Category `json:"category"`
	Version  int            `json:"version"`
	Source   string         `json:"source"`
	SavedAt  time.Time      `json:"savedAt"`
	Complete bool           `json:"complete"`
	Payload  any            `json:"payload"`
}

// PredictionsView lists what a user has saved.
type PredictionsView struct {
	UserID         string            `json:"userId"`
	Predictions    []SavedPrediction `json:"predictions"`
	NextIncomplete model.Category    `json:"nextIncomplete,omitempty"`
	Complete       bool              `json:"complete"`
}

// ComparisonEntry is one user's saved predictions in a comparison.
type ComparisonEntry struct {
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Predictions []SavedPrediction `json:"predictions"`
}

// Comparison lines users up once predictions are locked.
type Comparison struct {
	Season  season.Status     `json:"season"`
	Entries []ComparisonEntry `json:"entries"`
}
