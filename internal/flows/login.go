package flows

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/session"
)

// LoginInput is the flow-local login request.
type LoginInput struct {
	Email         string
	Password      string
	TwoFactorCode string
	IPAddress     string
	UserAgent     string
	RememberMe    bool
}

// LoginOutput is the flow-local login response.
type LoginOutput struct {
	Account              *account.Account
	Session              *session.Session
	BackupCodeUsed       bool
	RemainingBackupCodes int
}

type LoginMetrics struct {
	LoginSuccess      int
	LoginFailure      int
	TwoFactorRequired int
	TwoFactorFailure  int
	AccountLocked     int
	LockReleased      int
	BackupCodeUsed    int
	SessionCreated    int
}

type LoginEvents struct {
	LoginSuccess      string
	LoginFailure      string
	AccountLocked     string
	LockReleased      string
	TwoFactorRequired string
	TwoFactorFailure  string
	BackupCodeUsed    string
}

type LoginErrors struct {
	EngineNotReady       error
	InvalidCredentials   error
	TwoFactorRequired    error
	InvalidTwoFactorCode error
	Hash                 error
	Database             error
	Eligibility          EligibilityErrors
}

// LockoutFunc evaluates one confirmed failure on an active account. current is the
// number of failures recorded before this one. A non-nil lock means the threshold
// was reached.
type LockoutFunc func(current int, now time.Time) (failed int, lock *account.Locked)

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Hooks

	LockoutDuration time.Duration
	// DummyHash is verified against when the email is unknown, so both outcomes cost
	// one password verification. Empty disables it.
	DummyHash string

	Accounts     account.Repository
	MapRepoError func(error) error
	Password     PasswordFuncs
	VerifyTOTP   TOTPFunc

	EvaluateLockout LockoutFunc
	// RecordFailure returns the post-increment failure count. Nil means every failure
	// is evaluated as the first one.
	RecordFailure func(ctx context.Context, userID string) (int, error)
	ResetFailures func(ctx context.Context, userID string) error

	IssueSession func(ctx context.Context, req session.IssueRequest) (*session.Session, error)
	// MapSessionError translates IssueSession failures. Nil joins them with
	// Errors.Database.
	MapSessionError func(error) error

	SecondFactorAttempts AttemptGuard

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin executes one login attempt.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*LoginOutput, error) {
	deps.normalize()
	if deps.Accounts == nil ||
		deps.MapRepoError == nil ||
		deps.Password.Verify == nil ||
		deps.VerifyTOTP == nil ||
		deps.EvaluateLockout == nil ||
		deps.IssueSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := account.NormalizeEmail(in.Email)
	acct, err := deps.Accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.Password.Verify(in.Password, deps.DummyHash)
			}
			deps.MetricInc(deps.Metrics.LoginFailure)
			deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", "", deps.Errors.InvalidCredentials, nil)
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, deps.MapRepoError(err)
	}

	now := deps.Now()
	acct, err = releaseLapsedLock(ctx, acct, now, &deps)
	if err != nil {
		return nil, err
	}

	if err := CheckLoginEligibility(acct.Status, now, deps.LockoutDuration, deps.Errors.Eligibility); err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acct.ID, "", err, nil)
		return nil, err
	}

	ok, err := deps.Password.Verify(in.Password, acct.PasswordHash)
	if err != nil {
		return nil, errors.Join(deps.Errors.Hash, err)
	}
	if !ok {
		recordFailedPassword(ctx, acct, now, &deps)
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, acct.ID, "", deps.Errors.InvalidCredentials, nil)
		return nil, deps.Errors.InvalidCredentials
	}

	out := &LoginOutput{}
	var spentDigest string
	switch tf := acct.TwoFactor.(type) {
	case account.TwoFactorEnabled:
		if strings.TrimSpace(in.TwoFactorCode) == "" {
			deps.MetricInc(deps.Metrics.TwoFactorRequired)
			deps.EmitAudit(ctx, deps.Events.TwoFactorRequired, false, acct.ID, "", deps.Errors.TwoFactorRequired, nil)
			return nil, deps.Errors.TwoFactorRequired
		}
		if err := deps.SecondFactorAttempts.admit(ctx, acct.ID, &deps.Hooks); err != nil {
			deps.MetricInc(deps.Metrics.TwoFactorFailure)
			deps.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, acct.ID, "", err, nil)
			return nil, err
		}
		outcome, err := VerifySecondFactor(ctx, acct, tf, in.TwoFactorCode, deps.VerifyTOTP, now, deps.Accounts, deps.MapRepoError, deps.Errors.InvalidTwoFactorCode)
		if err != nil {
			if errors.Is(err, deps.Errors.InvalidTwoFactorCode) {
				deps.SecondFactorAttempts.failed(ctx, acct.ID, &deps.Hooks)
				deps.MetricInc(deps.Metrics.TwoFactorFailure)
				deps.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, acct.ID, "", err, nil)
			}
			return nil, err
		}
		deps.SecondFactorAttempts.passed(ctx, acct.ID, &deps.Hooks)
		if outcome.BackupCodeUsed {
			spentDigest = outcome.Digest
			out.BackupCodeUsed = true
			out.RemainingBackupCodes = outcome.RemainingCodes
			deps.MetricInc(deps.Metrics.BackupCodeUsed)
			deps.EmitAudit(ctx, deps.Events.BackupCodeUsed, true, acct.ID, "", nil, func() map[string]string {
				return map[string]string{"remaining": strconv.Itoa(outcome.RemainingCodes)}
			})
		}
	case account.TwoFactorDisabled, account.TwoFactorPending, nil:
		// A pending enrollment is not enforced until it is confirmed.
	default:
		return nil, account.ErrUnknownTwoFactor
	}

	if deps.ResetFailures != nil {
		if err := deps.ResetFailures(ctx, acct.ID); err != nil {
			deps.Warn("login.reset_failures", acct.ID, err)
		}
	}

	if err := deps.Accounts.RecordLogin(ctx, acct.ID, now, in.IPAddress); err != nil {
		restoreBackupCode(ctx, acct.ID, spentDigest, &deps)
		return nil, deps.MapRepoError(err)
	}
	acct = acct.Clone()
	at := now
	acct.LastLoginAt = &at
	acct.LastLoginIP = in.IPAddress

	sess, err := deps.IssueSession(ctx, session.IssueRequest{
		UserID:     acct.ID,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		RememberMe: in.RememberMe,
	})
	if err != nil {
		restoreBackupCode(ctx, acct.ID, spentDigest, &deps)
		if deps.MapSessionError != nil {
			return nil, deps.MapSessionError(err)
		}
		return nil, errors.Join(deps.Errors.Database, err)
	}
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, acct.ID, sess.ID, nil, func() map[string]string {
		return map[string]string{"remember_me": strconv.FormatBool(in.RememberMe)}
	})

	out.Account = acct
	out.Session = sess
	return out, nil
}

// releaseLapsedLock moves a Locked account whose lock has expired back to Active
// before the eligibility gate runs. When another attempt wins the update race the
// fresh record is returned instead.
func releaseLapsedLock(ctx context.Context, acct *account.Account, now time.Time, deps *LoginDeps) (*account.Account, error) {
	locked, ok := acct.Status.(account.Locked)
	if !ok || !locked.Lapsed(now, deps.LockoutDuration) {
		return acct, nil
	}

	next := acct.Clone()
	next.Status = account.Active{}
	next.UpdatedAt = now
	if err := deps.Accounts.Update(ctx, next); err != nil {
		if !errors.Is(err, account.ErrConflict) {
			return nil, deps.MapRepoError(err)
		}
		fresh, err := deps.Accounts.FindByID(ctx, acct.ID)
		if err != nil {
			return nil, deps.MapRepoError(err)
		}
		return fresh, nil
	}

	if deps.ResetFailures != nil {
		if err := deps.ResetFailures(ctx, acct.ID); err != nil {
			deps.Warn("login.release_lock.reset_failures", acct.ID, err)
		}
	}
	deps.MetricInc(deps.Metrics.LockReleased)
	deps.EmitAudit(ctx, deps.Events.LockReleased, true, acct.ID, "", nil, func() map[string]string {
		return map[string]string{"locked_at": locked.LockedAt.UTC().Format(time.RFC3339)}
	})
	deps.Info("login.release_lock", acct.ID, "lapsed lock released")
	return next, nil
}

// recordFailedPassword applies the lockout policy to a confirmed wrong password.
// Only the transition into Locked is written to the account.
func recordFailedPassword(ctx context.Context, acct *account.Account, now time.Time, deps *LoginDeps) {
	if _, ok := acct.Status.(account.Active); !ok {
		return
	}

	current := 0
	if deps.RecordFailure != nil {
		n, err := deps.RecordFailure(ctx, acct.ID)
		if err != nil {
			deps.Warn("login.record_failure", acct.ID, err)
		} else if n > 0 {
			current = n - 1
		}
	}

	failed, lock := deps.EvaluateLockout(current, now)
	if lock == nil {
		return
	}

	next := acct.Clone()
	next.Status = *lock
	next.UpdatedAt = now
	if err := deps.Accounts.Update(ctx, next); err != nil {
		if errors.Is(err, account.ErrConflict) {
			// Another attempt already moved the account.
			return
		}
		deps.Warn("login.persist_lock", acct.ID, err)
		return
	}

	deps.MetricInc(deps.Metrics.AccountLocked)
	deps.EmitAudit(ctx, deps.Events.AccountLocked, true, acct.ID, "", nil, func() map[string]string {
		return map[string]string{
			"failed_attempts": strconv.Itoa(failed),
			"reason":          lock.Reason,
		}
	})
	deps.Info("login.lock", acct.ID, "account locked after "+strconv.Itoa(failed)+" failed attempts")
}

// restoreBackupCode returns a consumed backup code digest to the account when the
// login failed after consuming it. A concurrent change to the account wins.
func restoreBackupCode(ctx context.Context, userID, digest string, deps *LoginDeps) {
	if digest == "" {
		return
	}
	acct, err := deps.Accounts.FindByID(ctx, userID)
	if err != nil {
		deps.Warn("login.restore_backup_code", userID, err)
		return
	}
	enabled, ok := acct.TwoFactor.(account.TwoFactorEnabled)
	if !ok || slices.Contains(enabled.BackupCodes, digest) {
		return
	}

	next := acct.Clone()
	next.TwoFactor = account.TwoFactorEnabled{
		Secret:      enabled.Secret,
		BackupCodes: append(slices.Clone(enabled.BackupCodes), digest),
	}
	next.UpdatedAt = deps.Now()
	if err := deps.Accounts.Update(ctx, next); err != nil {
		deps.Warn("login.restore_backup_code", userID, err)
		return
	}
	deps.Info("login.restore_backup_code", userID, "backup code restored after failed login")
}
