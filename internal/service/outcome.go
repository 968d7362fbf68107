package service

import "github.com/GTDGit/dealfinder/internal/utils"

// Outcome is the user-visible result class of a search or page request.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeNoResults      Outcome = "no_results"
	OutcomeRateLimited    Outcome = "rate_limited"
	OutcomeExpired        Outcome = "expired"
	OutcomeExhausted      Outcome = "exhausted"
	OutcomeUnauthorized   Outcome = "unauthorized"
	OutcomeInvalidRequest Outcome = "invalid_request"
	OutcomeFailed         Outcome = "failed"
)

// Err maps an outcome to its sentinel error; OK maps to nil.
func (o Outcome) Err() error {
	switch o {
	case OutcomeOK:
		return nil
	case OutcomeNoResults:
		return utils.ErrNoResults
	case OutcomeRateLimited:
		return utils.ErrRateLimited
	case OutcomeExpired:
		return utils.ErrSessionExpired
	case OutcomeExhausted:
		return utils.ErrSessionExhausted
	case OutcomeUnauthorized:
		return utils.ErrUnauthorized
	case OutcomeInvalidRequest:
		return utils.ErrInvalidRequest
	default:
		return utils.ErrSearchFailed
	}
}
