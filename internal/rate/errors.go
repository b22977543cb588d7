package rate

import "errors"

var (
	// ErrRateLimited is returned once a failed-login budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps cache failures.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
)
