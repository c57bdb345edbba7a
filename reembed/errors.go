package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when a Backoff has no attempts
	ErrInvalidMaxAttempts = errors.New("backoff attempts must be greater than 0")
)
