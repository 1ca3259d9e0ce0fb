package payload

import "errors"

// Sentinel errors for payload decoding and validation.
var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrUnknownCategory = errors.New("unknown category")
)
