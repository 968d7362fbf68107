package aliexpress

// errKind classifies the outcome of one attempt.
type errKind int

const (
	kindNone errKind = iota
	kindRateLimit
	kindTransport
	kindEmptyLinks
	kindAuth
)

func (k errKind) String() string {
	switch k {
	case kindNone:
		return "ok"
	case kindRateLimit:
		return "rate_limit"
	case kindTransport:
		return "transport"
	case kindEmptyLinks:
		return "empty_links"
	case kindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// step is what the caller must do before the next attempt.
type step int

const (
	stepDone step = iota
	stepRotate
	stepRetry
	stepCoolDown
	stepExhausted
)

// retryPolicy tracks attempts across credentials for one logical call.
//
// Rate-limit rejections rotate through credentials without consuming
// attempts. Once every credential has been rejected in the current round the
// caller cools down and a new round begins, up to maxRounds. Transport errors
// and empty promotion links consume attempts and alternate credentials.
// Credential rejections end the call at once.
type retryPolicy struct {
	n            int
	cred         int
	attempt      int
	maxAttempts  int
	triedInRound int
	rounds       int
	maxRounds    int
}

func newRetryPolicy(n, primary, maxAttempts, maxRounds int) *retryPolicy {
	if n < 1 {
		n = 1
	}
	return &retryPolicy{
		n:           n,
		cred:        primary % n,
		maxAttempts: maxAttempts,
		maxRounds:   maxRounds,
	}
}

func (p *retryPolicy) rotate() {
	p.cred = (p.cred + 1) % p.n
}

// next records the outcome of the last attempt and returns the next step.
func (p *retryPolicy) next(kind errKind) step {
	switch kind {
	case kindNone:
		return stepDone

	case kindRateLimit:
		p.triedInRound++
		if p.triedInRound < p.n {
			p.rotate()
			return stepRotate
		}
		p.rounds++
		if p.rounds >= p.maxRounds {
			return stepExhausted
		}
		p.triedInRound = 0
		p.rotate()
		return stepCoolDown

	case kindAuth:
		return stepExhausted

	default:
		p.triedInRound = 0
		p.attempt++
		if p.attempt >= p.maxAttempts {
			return stepExhausted
		}
		p.rotate()
		return stepRetry
	}
}
