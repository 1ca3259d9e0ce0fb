package service

import "errors"

// Sentinel kinds for board service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrInvalidUser    = errors.New("invalid user id")
	ErrInvalidInput   = errors.New("invalid input")
	ErrBoardNotFound  = errors.New("board not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrPropNotFound   = errors.New("prop not found")
	ErrUserNotFound   = errors.New("user has no saved predictions")
	ErrSeasonLocked   = errors.New("season locked: predictions can no longer change")
	ErrSeasonOpen     = errors.New("season open: predictions are hidden until lock")
	ErrBackpressure   = errors.New("save queue full")
)
