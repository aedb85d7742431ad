package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/internal/flows"
)

// Login authenticates req and opens a session.
//
// An unknown email and a wrong password both return ErrInvalidCredentials. A locked,
// suspended, deleted or unverified account is rejected before the password is
// checked. Accounts with an enabled second factor need TwoFactorCode, which may be
// a TOTP code or an unused backup code. After TwoFactor.MaxAttempts wrong codes the
// account gets ErrTwoFactorRateLimited until the cooldown ends.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if req.IPAddress != "" {
		ctx = WithClientIP(ctx, req.IPAddress)
	} else {
		req.IPAddress = clientIPFromContext(ctx)
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricLoginLatency, time.Since(start))
		}()
	}

	out, err := flows.RunLogin(ctx, flows.LoginInput{
		Email:         req.Email,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		RememberMe:    req.RememberMe,
	}, e.loginDeps())
	if err != nil {
		if errors.Is(err, ErrTwoFactorRequired) {
			return &LoginResult{RequiresTwoFactor: true}, err
		}
		return nil, err
	}

	result := &LoginResult{
		UserID:               out.Account.ID,
		SessionID:            out.Session.ID,
		RefreshToken:         out.Session.RefreshToken,
		ExpiresAt:            out.Session.ExpiresAt,
		BackupCodeUsed:       out.BackupCodeUsed,
		RemainingBackupCodes: out.RemainingBackupCodes,
	}
	if e.jwtManager != nil {
		access, err := e.jwtManager.CreateAccess(out.Account.ID, out.Session.ID, string(out.Account.Role))
		if err != nil {
			// Do not leave a session behind whose token was never returned.
			if revokeErr := e.sessions.Revoke(ctx, out.Account.ID, out.Session.ID); revokeErr != nil {
				e.logWarn("login.revoke_unsigned_session", out.Account.ID, revokeErr)
			}
			return nil, errors.Join(ErrTokenGeneration, err)
		}
		result.AccessToken = access
	}
	return result, nil
}

func (e *Engine) loginDeps() flows.LoginDeps {
	record, reset := e.failureFuncs()
	return flows.LoginDeps{
		Hooks:           e.hooks(),
		LockoutDuration: e.config.Lockout.Duration,
		DummyHash:       e.dummyHash,
		Accounts:        e.accounts,
		MapRepoError:    mapRepoError,
		Password:        e.passwordFuncs(),
		VerifyTOTP:      e.totp.Verify,
		EvaluateLockout: func(current int, now time.Time) (int, *account.Locked) {
			d := e.lockout.Evaluate(current, now)
			return d.FailedAttempts, d.Lock
		},
		RecordFailure:        record,
		ResetFailures:        reset,
		IssueSession:         e.sessions.Issue,
		MapSessionError:      mapSessionError,
		SecondFactorAttempts: e.attemptGuard(),
		Metrics: flows.LoginMetrics{
			LoginSuccess:      int(MetricLoginSuccess),
			LoginFailure:      int(MetricLoginFailure),
			TwoFactorRequired: int(MetricTwoFactorRequired),
			TwoFactorFailure:  int(MetricTwoFactorFailure),
			AccountLocked:     int(MetricAccountLocked),
			LockReleased:      int(MetricLockReleased),
			BackupCodeUsed:    int(MetricBackupCodeUsed),
			SessionCreated:    int(MetricSessionCreated),
		},
		Events: flows.LoginEvents{
			LoginSuccess:      auditEventLoginSuccess,
			LoginFailure:      auditEventLoginFailure,
			AccountLocked:     auditEventAccountLocked,
			LockReleased:      auditEventLockReleased,
			TwoFactorRequired: auditEventTwoFactorRequired,
			TwoFactorFailure:  auditEventTwoFactorFailure,
			BackupCodeUsed:    auditEventBackupCodeUsed,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:       ErrEngineNotReady,
			InvalidCredentials:   ErrInvalidCredentials,
			TwoFactorRequired:    ErrTwoFactorRequired,
			InvalidTwoFactorCode: ErrInvalidTwoFactorCode,
			Hash:                 ErrHash,
			Database:             ErrDatabase,
			Eligibility:          e.eligibilityErrors(),
		},
	}
}
