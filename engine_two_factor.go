package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
)

// SetupTwoFactor starts TOTP enrollment for userID after re-checking the password.
// The returned secret stays pending until VerifyTwoFactor confirms a code. Calling it
// again during enrollment replaces the pending secret.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID, password string) (*TwoFactorSetup, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	setup, err := flows.RunSetupTwoFactor(ctx, userID, password, e.twoFactorDeps())
	if err != nil {
		return nil, err
	}
	return &TwoFactorSetup{Secret: setup.Secret, ProvisioningURI: setup.ProvisioningURI}, nil
}

// VerifyTwoFactor confirms a pending enrollment with a TOTP code and returns the
// plaintext backup codes. They are shown once and stored only as digests.
func (e *Engine) VerifyTwoFactor(ctx context.Context, userID, code string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return flows.RunVerifyTwoFactor(ctx, userID, code, e.twoFactorDeps())
}

// DisableTwoFactor turns the second factor off. Both the password and a valid TOTP
// or unused backup code are required.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, password, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return flows.RunDisableTwoFactor(ctx, userID, password, code, e.twoFactorDeps())
}

// RegenerateBackupCodes replaces every backup code after checking code.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, code string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return flows.RunRegenerateBackupCodes(ctx, userID, code, e.twoFactorDeps())
}

func (e *Engine) twoFactorDeps() flows.TwoFactorDeps {
	deps := flows.TwoFactorDeps{
		Hooks:            e.hooks(),
		LockoutDuration:  e.config.Lockout.Duration,
		BackupCodeCount:  e.config.TwoFactor.BackupCodeCount,
		BackupCodeLength: e.config.TwoFactor.BackupCodeLength,
		Accounts:         e.accounts,
		MapRepoError:     mapRepoError,
		Password:         e.passwordFuncs(),
		VerifyTOTP:       e.totp.Verify,
		GenerateSecret:   e.totp.GenerateSecret,
		RandomIndex:      internal.RandomIndex,
		Attempts:         e.attemptGuard(),
		Metrics: flows.TwoFactorMetrics{
			SetupRequested:         int(MetricTwoFactorSetup),
			Enabled:                int(MetricTwoFactorEnabled),
			Disabled:               int(MetricTwoFactorDisabled),
			Failure:                int(MetricTwoFactorFailure),
			BackupCodesRegenerated: int(MetricBackupCodeRegenerated),
			BackupCodeUsed:         int(MetricBackupCodeUsed),
			NotifierFailure:        int(MetricNotifierFailure),
		},
		Events: flows.TwoFactorEvents{
			SetupRequested:       auditEventTwoFactorSetup,
			Enabled:              auditEventTwoFactorEnabled,
			Disabled:             auditEventTwoFactorDisabled,
			Failure:              auditEventTwoFactorFailure,
			BackupCodesGenerated: auditEventBackupCodesIssued,
			BackupCodeUsed:       auditEventBackupCodeUsed,
		},
		Errors: flows.TwoFactorErrors{
			EngineNotReady:   ErrEngineNotReady,
			AccountNotFound:  ErrAccountNotFound,
			InvalidPassword:  ErrInvalidPassword,
			InvalidCode:      ErrInvalidCode,
			AlreadyEnabled:   ErrTwoFactorAlreadyEnabled,
			NotPending:       ErrTwoFactorNotPending,
			NotEnabled:       ErrTwoFactorNotEnabled,
			Hash:             ErrHash,
			BackupCodeFailed: ErrTokenGeneration,
			Eligibility:      e.eligibilityErrors(),
		},
	}
	if e.notifier != nil {
		deps.NotifyEnabled = e.notifier.TwoFactorEnabled
	}
	return deps
}
