package repository

import "errors"

// Sentinel kinds for prediction store errors.
var (
	ErrNotFound    = errors.New("prediction not found")
	ErrInvalidUser = errors.New("invalid user id")
	ErrNilPayload  = errors.New("nil payload")
	ErrClosed      = errors.New("store closed")
)
