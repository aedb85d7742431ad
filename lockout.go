package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/account"
)

// DefaultLockReason is recorded on accounts locked by the failure policy.
const DefaultLockReason = "Too many failed login attempts"

// LockoutPolicy decides when repeated password failures lock an account.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Reason            string
}

// LockoutDecision is the outcome of one evaluated failure. Lock is non-nil when the
// threshold was reached.
type LockoutDecision struct {
	FailedAttempts int
	Lock           *account.Locked
}

// Evaluate applies one failed attempt on top of current. It has no side effects.
func (p LockoutPolicy) Evaluate(current int, now time.Time) LockoutDecision {
	if current < 0 {
		current = 0
	}
	failed := current + 1
	decision := LockoutDecision{FailedAttempts: failed}
	if p.MaxFailedAttempts > 0 && failed >= p.MaxFailedAttempts {
		reason := p.Reason
		if reason == "" {
			reason = DefaultLockReason
		}
		decision.Lock = &account.Locked{
			Reason:         reason,
			LockedAt:       now,
			FailedAttempts: failed,
		}
	}
	return decision
}
