package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal/flows"
)

// VerifyEmail activates an unverified account when token matches the stored
// verification token and has not expired.
func (e *Engine) VerifyEmail(ctx context.Context, userID, token string) error {
	return e.changeStatus(ctx, userID, func(errs flows.StatusErrors) flows.StatusChange {
		return flows.VerifyEmailChange(token, errs)
	})
}

// SuspendAccount suspends userID and revokes all of its sessions.
func (e *Engine) SuspendAccount(ctx context.Context, userID, reason string) error {
	return e.changeStatus(ctx, userID, func(flows.StatusErrors) flows.StatusChange {
		return flows.SuspendChange(reason)
	})
}

// ReactivateAccount lifts a suspension.
func (e *Engine) ReactivateAccount(ctx context.Context, userID string) error {
	return e.changeStatus(ctx, userID, flows.ReactivateChange)
}

// UnlockAccount releases a lock immediately and clears the failure counter.
func (e *Engine) UnlockAccount(ctx context.Context, userID string) error {
	return e.changeStatus(ctx, userID, flows.UnlockChange)
}

// DeleteAccount marks userID deleted and revokes all of its sessions. Deletion is
// terminal.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	return e.changeStatus(ctx, userID, func(flows.StatusErrors) flows.StatusChange {
		return flows.DeleteChange()
	})
}

func (e *Engine) changeStatus(ctx context.Context, userID string, build func(flows.StatusErrors) flows.StatusChange) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	deps := e.statusDeps()
	_, err := flows.RunStatusChange(ctx, userID, build(deps.Errors), deps)
	return err
}

// AccountStatus returns the current status of userID.
func (e *Engine) AccountStatus(ctx context.Context, userID string) (account.Status, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	acct, err := e.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return acct.Status, nil
}

func (e *Engine) statusDeps() flows.StatusDeps {
	_, reset := e.failureFuncs()
	return flows.StatusDeps{
		Hooks:             e.hooks(),
		Accounts:          e.accounts,
		MapRepoError:      mapRepoError,
		RevokeAllSessions: e.revokeAllSessions,
		ResetFailures:     reset,
		Metrics: flows.StatusMetrics{
			StatusChanged: int(MetricAccountStatusChanged),
			LockReleased:  int(MetricLockReleased),
		},
		Events: flows.StatusEvents{
			StatusChange: auditEventAccountStatusChange,
		},
		Errors: flows.StatusErrors{
			EngineNotReady:           ErrEngineNotReady,
			AccountNotFound:          ErrAccountNotFound,
			InvalidTransition:        ErrInvalidTransition,
			EmailVerificationInvalid: ErrEmailVerificationInvalid,
			EmailVerificationExpired: ErrEmailVerificationExpired,
			Database:                 ErrDatabase,
		},
	}
}
