package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidToken     = errors.New("INVALID_TOKEN")
	ErrInvalidRequest   = errors.New("INVALID_REQUEST")
	ErrInvalidPage      = errors.New("INVALID_PAGE")
	ErrEmptyQuery       = errors.New("EMPTY_QUERY")
	ErrSessionExpired   = errors.New("SESSION_EXPIRED")
	ErrSessionExhausted = errors.New("SESSION_EXHAUSTED")
	ErrUnauthorized     = errors.New("UNAUTHORIZED")
	ErrNoResults        = errors.New("NO_RESULTS")
	ErrRateLimited      = errors.New("RATE_LIMITED")
	ErrSearchFailed     = errors.New("SEARCH_FAILED")
	ErrInvalidLogin     = errors.New("INVALID_CREDENTIALS")
)
