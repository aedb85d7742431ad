package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal"
)

// EligibilityErrors are the host errors returned by CheckLoginEligibility.
type EligibilityErrors struct {
	AccountLocked    func(until time.Time) error
	AccountSuspended func(reason string) error
	AccountDeleted   error
	EmailNotVerified error
}

// CheckLoginEligibility gates every credential check. A Locked status whose
// lockoutDuration has lapsed at now is treated as eligible; the login flow releases
// such locks durably before calling this.
func CheckLoginEligibility(status account.Status, now time.Time, lockoutDuration time.Duration, errs EligibilityErrors) error {
	switch s := status.(type) {
	case account.Active:
		return nil
	case account.Locked:
		if s.Lapsed(now, lockoutDuration) {
			return nil
		}
		return errs.AccountLocked(s.LockExpiry(lockoutDuration))
	case account.Suspended:
		return errs.AccountSuspended(s.Reason)
	case account.Deleted:
		return errs.AccountDeleted
	case account.Unverified:
		return errs.EmailNotVerified
	default:
		return account.ErrUnknownStatus
	}
}

type StatusMetrics struct {
	StatusChanged int
	LockReleased  int
}

type StatusEvents struct {
	StatusChange string
}

type StatusErrors struct {
	EngineNotReady           error
	AccountNotFound          error
	InvalidTransition        error
	EmailVerificationInvalid error
	EmailVerificationExpired error
	Database                 error
}

// StatusDeps drives RunStatusChange.
type StatusDeps struct {
	Hooks

	Accounts          account.Repository
	MapRepoError      func(error) error
	RevokeAllSessions func(ctx context.Context, userID string) (int, error)
	ResetFailures     func(ctx context.Context, userID string) error

	Metrics StatusMetrics
	Events  StatusEvents
	Errors  StatusErrors
}

// StatusChange describes one administrative transition.
type StatusChange struct {
	Op string
	// Target computes the next status from the current account. Returning an error
	// aborts the change.
	Target         func(acct *account.Account, now time.Time) (account.Status, error)
	RevokeSessions bool
	ResetFailures  bool
}

// VerifyEmailChange moves an unverified account to active when token matches.
func VerifyEmailChange(token string, errs StatusErrors) StatusChange {
	return StatusChange{
		Op: "verify_email",
		Target: func(acct *account.Account, now time.Time) (account.Status, error) {
			u, ok := acct.Status.(account.Unverified)
			if !ok {
				return nil, errs.EmailVerificationInvalid
			}
			if token == "" || u.EmailVerificationToken == "" || !internal.ConstantTimeEqual(token, u.EmailVerificationToken) {
				return nil, errs.EmailVerificationInvalid
			}
			if !u.TokenExpiry.IsZero() && !now.Before(u.TokenExpiry) {
				return nil, errs.EmailVerificationExpired
			}
			return account.Active{}, nil
		},
	}
}

func SuspendChange(reason string) StatusChange {
	return StatusChange{
		Op: "suspend",
		Target: func(_ *account.Account, now time.Time) (account.Status, error) {
			return account.Suspended{Reason: reason, SuspendedAt: now}, nil
		},
		RevokeSessions: true,
	}
}

// ReactivateChange lifts a suspension. Locked accounts must go through UnlockChange.
func ReactivateChange(errs StatusErrors) StatusChange {
	return StatusChange{
		Op:            "reactivate",
		Target:        activateFrom(account.KindSuspended, errs),
		ResetFailures: true,
	}
}

// UnlockChange releases a lock regardless of how long it has been held.
func UnlockChange(errs StatusErrors) StatusChange {
	return StatusChange{
		Op:            "unlock",
		Target:        activateFrom(account.KindLocked, errs),
		ResetFailures: true,
	}
}

func activateFrom(kind account.StatusKind, errs StatusErrors) func(*account.Account, time.Time) (account.Status, error) {
	return func(acct *account.Account, _ time.Time) (account.Status, error) {
		if acct.Status == nil {
			return nil, account.ErrUnknownStatus
		}
		switch acct.Status.Kind() {
		case kind, account.KindActive:
			return account.Active{}, nil
		default:
			return nil, errors.Join(errs.InvalidTransition, account.ErrInvalidTransition)
		}
	}
}

func DeleteChange() StatusChange {
	return StatusChange{
		Op: "delete",
		Target: func(_ *account.Account, now time.Time) (account.Status, error) {
			return account.Deleted{DeletedAt: now}, nil
		},
		RevokeSessions: true,
	}
}

// RunStatusChange applies change with a compare-and-swap update. Moving to the kind
// the account already has is a no-op.
func RunStatusChange(ctx context.Context, userID string, change StatusChange, deps StatusDeps) (*account.Account, error) {
	deps.normalize()
	if deps.Accounts == nil || deps.MapRepoError == nil || change.Target == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if userID == "" {
		return nil, deps.Errors.AccountNotFound
	}

	acct, err := deps.Accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, deps.MapRepoError(err)
	}

	now := deps.Now()
	next, err := change.Target(acct, now)
	if err != nil {
		return nil, err
	}
	from := acct.Status
	if from != nil && from.Kind() == next.Kind() {
		return acct, nil
	}
	if err := account.CanTransition(from, next.Kind()); err != nil {
		if errors.Is(err, account.ErrInvalidTransition) {
			return nil, errors.Join(deps.Errors.InvalidTransition, err)
		}
		return nil, err
	}

	updated := acct.Clone()
	updated.Status = next
	updated.UpdatedAt = now
	if err := deps.Accounts.Update(ctx, updated); err != nil {
		return nil, deps.MapRepoError(err)
	}

	deps.MetricInc(deps.Metrics.StatusChanged)
	if _, wasLocked := from.(account.Locked); wasLocked && next.Kind() == account.KindActive {
		deps.MetricInc(deps.Metrics.LockReleased)
	}
	deps.EmitAudit(ctx, deps.Events.StatusChange, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"op":   change.Op,
			"from": from.Kind().String(),
			"to":   next.Kind().String(),
		}
	})
	deps.Info(change.Op, userID, "account status changed to "+next.Kind().String())

	if change.ResetFailures && deps.ResetFailures != nil {
		if err := deps.ResetFailures(ctx, userID); err != nil {
			deps.Warn(change.Op+".reset_failures", userID, err)
		}
	}
	if change.RevokeSessions && deps.RevokeAllSessions != nil {
		if _, err := deps.RevokeAllSessions(ctx, userID); err != nil {
			return updated, errors.Join(deps.Errors.Database, err)
		}
	}

	return updated, nil
}
