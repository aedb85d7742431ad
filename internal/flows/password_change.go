package flows

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/account"
)

type PasswordChangeInput struct {
	UserID           string
	CurrentPassword  string
	NewPassword      string
	CurrentSessionID string
}

type PasswordChangeMetrics struct {
	Success         int
	InvalidOld      int
	Reused          int
	Weak            int
	NotifierFailure int
	SessionRevoked  int
}

type PasswordChangeEvents struct {
	Success    string
	InvalidOld string
	Reuse      string
	Failure    string
}

type PasswordChangeErrors struct {
	EngineNotReady  error
	AccountNotFound error
	InvalidPassword error
	WeakPassword    error
	PasswordReused  error
	Hash            error
	Eligibility     EligibilityErrors
}

// PasswordChangeDeps drives RunChangePassword.
type PasswordChangeDeps struct {
	Hooks

	LockoutDuration     time.Duration
	HistorySize         int
	ReuseWindow         int
	RevokeOtherSessions bool

	Accounts       account.Repository
	MapRepoError   func(error) error
	Password       PasswordFuncs
	ValidatePolicy func(plain string) error
	// RevokeAllSessions removes every session of userID except exceptID.
	RevokeAllSessions func(ctx context.Context, userID, exceptID string) (int, error)
	NotifyChanged     func(ctx context.Context, acct *account.Account) error

	Metrics PasswordChangeMetrics
	Events  PasswordChangeEvents
	Errors  PasswordChangeErrors
}

// RunChangePassword verifies the current password, rejects weak or recently used
// replacements, and rotates the hash into history. It returns the number of other
// sessions revoked.
func RunChangePassword(ctx context.Context, in PasswordChangeInput, deps PasswordChangeDeps) (int, error) {
	deps.normalize()
	if deps.Accounts == nil || deps.MapRepoError == nil || deps.Password.Verify == nil || deps.Password.Hash == nil {
		return 0, deps.Errors.EngineNotReady
	}
	if in.UserID == "" {
		return 0, deps.Errors.AccountNotFound
	}

	acct, err := deps.Accounts.FindByID(ctx, in.UserID)
	if err != nil {
		return 0, deps.MapRepoError(err)
	}
	now := deps.Now()
	if err := CheckLoginEligibility(acct.Status, now, deps.LockoutDuration, deps.Errors.Eligibility); err != nil {
		return 0, err
	}

	ok, err := deps.Password.Verify(in.CurrentPassword, acct.PasswordHash)
	if err != nil {
		return 0, errors.Join(deps.Errors.Hash, err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.InvalidOld)
		deps.EmitAudit(ctx, deps.Events.InvalidOld, false, acct.ID, in.CurrentSessionID, deps.Errors.InvalidPassword, nil)
		return 0, deps.Errors.InvalidPassword
	}

	if deps.ValidatePolicy != nil {
		if err := deps.ValidatePolicy(in.NewPassword); err != nil {
			deps.MetricInc(deps.Metrics.Weak)
			deps.EmitAudit(ctx, deps.Events.Failure, false, acct.ID, in.CurrentSessionID, deps.Errors.WeakPassword, nil)
			return 0, errors.Join(deps.Errors.WeakPassword, err)
		}
	}

	reused, err := deps.isReused(in.NewPassword, acct)
	if err != nil {
		return 0, errors.Join(deps.Errors.Hash, err)
	}
	if reused {
		deps.MetricInc(deps.Metrics.Reused)
		deps.EmitAudit(ctx, deps.Events.Reuse, false, acct.ID, in.CurrentSessionID, deps.Errors.PasswordReused, nil)
		return 0, deps.Errors.PasswordReused
	}

	newHash, err := deps.Password.Hash(in.NewPassword)
	if err != nil {
		return 0, errors.Join(deps.Errors.Hash, err)
	}

	next := acct.Clone()
	next.PasswordHistory = account.PushPasswordHistory(acct.PasswordHistory, acct.PasswordHash, deps.HistorySize)
	next.PasswordHash = newHash
	changedAt := now
	next.LastPasswordChangeAt = &changedAt
	next.UpdatedAt = now
	if err := deps.Accounts.Update(ctx, next); err != nil {
		return 0, deps.MapRepoError(err)
	}

	deps.MetricInc(deps.Metrics.Success)

	if deps.NotifyChanged != nil {
		if err := deps.NotifyChanged(ctx, next); err != nil {
			deps.MetricInc(deps.Metrics.NotifierFailure)
			deps.Warn("password_change.notify", acct.ID, err)
		}
	}

	revoked := 0
	if deps.RevokeOtherSessions && deps.RevokeAllSessions != nil {
		n, err := deps.RevokeAllSessions(ctx, acct.ID, in.CurrentSessionID)
		if err != nil {
			deps.Warn("password_change.revoke_sessions", acct.ID, err)
		}
		revoked = n
		for i := 0; i < n; i++ {
			deps.MetricInc(deps.Metrics.SessionRevoked)
		}
	}

	deps.EmitAudit(ctx, deps.Events.Success, true, acct.ID, in.CurrentSessionID, nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(revoked)}
	})
	return revoked, nil
}

// isReused checks the current hash first, then the reuse window of history.
func (d *PasswordChangeDeps) isReused(plain string, acct *account.Account) (bool, error) {
	if acct.PasswordHash != "" {
		same, err := d.Password.Verify(plain, acct.PasswordHash)
		if err != nil {
			return false, err
		}
		if same {
			return true, nil
		}
	}
	return account.CheckPasswordHistory(d.Password.Verify, plain, acct.PasswordHistory, d.ReuseWindow)
}
