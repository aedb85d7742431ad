package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal/flows"
)

// ChangePassword replaces the password of req.UserID and returns how many other
// sessions were revoked.
//
// The new password must satisfy the configured policy and may not match the current
// password or any of the most recent history entries. Every session except
// req.CurrentSessionID is revoked when Session.RevokeOnPasswordChange is set.
func (e *Engine) ChangePassword(ctx context.Context, req ChangePasswordRequest) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, flows.PasswordChangeInput{
		UserID:           req.UserID,
		CurrentPassword:  req.CurrentPassword,
		NewPassword:      req.NewPassword,
		CurrentSessionID: req.CurrentSessionID,
	}, e.passwordChangeDeps())
}

func (e *Engine) passwordChangeDeps() flows.PasswordChangeDeps {
	deps := flows.PasswordChangeDeps{
		Hooks:               e.hooks(),
		LockoutDuration:     e.config.Lockout.Duration,
		HistorySize:         e.config.Password.HistorySize,
		ReuseWindow:         e.config.Password.ReuseWindow,
		RevokeOtherSessions: e.config.Session.RevokeOnPasswordChange,
		Accounts:            e.accounts,
		MapRepoError:        mapRepoError,
		Password:            e.passwordFuncs(),
		ValidatePolicy:      e.policy.Validate,
		RevokeAllSessions:   e.sessions.RevokeAll,
		Metrics: flows.PasswordChangeMetrics{
			Success:         int(MetricPasswordChangeSuccess),
			InvalidOld:      int(MetricPasswordChangeInvalidOld),
			Reused:          int(MetricPasswordChangeReuseRejected),
			Weak:            int(MetricPasswordChangeWeak),
			NotifierFailure: int(MetricNotifierFailure),
			SessionRevoked:  int(MetricSessionRevoked),
		},
		Events: flows.PasswordChangeEvents{
			Success:    auditEventPasswordChange,
			InvalidOld: auditEventPasswordInvalidOld,
			Reuse:      auditEventPasswordReuse,
			Failure:    auditEventPasswordFailure,
		},
		Errors: flows.PasswordChangeErrors{
			EngineNotReady:  ErrEngineNotReady,
			AccountNotFound: ErrAccountNotFound,
			InvalidPassword: ErrInvalidPassword,
			WeakPassword:    ErrWeakPassword,
			PasswordReused:  ErrPasswordReused,
			Hash:            ErrHash,
			Eligibility:     e.eligibilityErrors(),
		},
	}
	if e.notifier != nil {
		deps.NotifyChanged = e.notifier.PasswordChanged
	}
	return deps
}
