package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/pickem/internal/app"
	"github.com/okian/pickem/internal/domain/payload"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrRateLimited = errors.New("rate limited")
)

// wrapKind tags err with the operation and error kind so both survive errors.Is.
func wrapKind(op string, kind, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// statusFor maps a service error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, payload.ErrInvalidPayload):
		return http.StatusUnprocessableEntity, "invalid_prediction"
	case errors.Is(err, service.ErrBoardNotFound),
		errors.Is(err, service.ErrPlayerNotFound),
		errors.Is(err, service.ErrPropNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrSeasonLocked):
		return http.StatusLocked, "season_locked"
	case errors.Is(err, service.ErrSeasonOpen):
		return http.StatusConflict, "season_open"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
