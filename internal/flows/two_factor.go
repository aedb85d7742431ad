package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/account"
)

// TwoFactorSetup is returned by RunSetupTwoFactor. Secret is base32.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

type TwoFactorMetrics struct {
	SetupRequested         int
	Enabled                int
	Disabled               int
	Failure                int
	BackupCodesRegenerated int
	BackupCodeUsed         int
	NotifierFailure        int
}

type TwoFactorEvents struct {
	SetupRequested       string
	Enabled              string
	Disabled             string
	Failure              string
	BackupCodesGenerated string
	BackupCodeUsed       string
}

type TwoFactorErrors struct {
	EngineNotReady   error
	AccountNotFound  error
	InvalidPassword  error
	InvalidCode      error
	AlreadyEnabled   error
	NotPending       error
	NotEnabled       error
	Hash             error
	BackupCodeFailed error
	Eligibility      EligibilityErrors
}

// TwoFactorDeps drives the enrollment and management flows.
type TwoFactorDeps struct {
	Hooks

	LockoutDuration  time.Duration
	BackupCodeCount  int
	BackupCodeLength int

	Accounts     account.Repository
	MapRepoError func(error) error
	Password     PasswordFuncs
	VerifyTOTP   TOTPFunc
	// GenerateSecret returns a new base32 secret and its provisioning URI.
	GenerateSecret func(accountName string) (secret, uri string, err error)
	RandomIndex    func(int) (int, error)
	// NotifyEnabled is called after a successful enrollment. Errors are logged only.
	NotifyEnabled func(ctx context.Context, acct *account.Account) error

	Attempts AttemptGuard

	Metrics TwoFactorMetrics
	Events  TwoFactorEvents
	Errors  TwoFactorErrors
}

func (d *TwoFactorDeps) ready() bool {
	return d.Accounts != nil && d.MapRepoError != nil && d.Password.Verify != nil &&
		d.VerifyTOTP != nil && d.GenerateSecret != nil
}

// SecondFactorOutcome reports how a second-factor code was accepted.
type SecondFactorOutcome struct {
	BackupCodeUsed bool
	RemainingCodes int
	// Digest is the consumed backup code digest.
	Digest string
}

// VerifySecondFactor tries code as a TOTP first and then as a backup code. A matching
// backup code is consumed atomically by the repository. invalid is returned when
// neither form matches.
func VerifySecondFactor(
	ctx context.Context,
	acct *account.Account,
	tf account.TwoFactorEnabled,
	code string,
	verifyTOTP TOTPFunc,
	now time.Time,
	accounts account.Repository,
	mapRepoError func(error) error,
	invalid error,
) (SecondFactorOutcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return SecondFactorOutcome{}, invalid
	}
	if verifyTOTP(tf.Secret, code, now) {
		return SecondFactorOutcome{}, nil
	}

	canonical := CanonicalizeBackupCode(code)
	if canonical == "" {
		return SecondFactorOutcome{}, invalid
	}
	digest := BackupCodeDigest(acct.ID, canonical)
	remaining, err := accounts.ConsumeBackupCode(ctx, acct.ID, digest)
	if err != nil {
		if errors.Is(err, account.ErrBackupCodeNotFound) {
			return SecondFactorOutcome{}, invalid
		}
		return SecondFactorOutcome{}, mapRepoError(err)
	}
	return SecondFactorOutcome{BackupCodeUsed: true, RemainingCodes: remaining, Digest: digest}, nil
}

func loadEligible(ctx context.Context, userID string, deps *TwoFactorDeps) (*account.Account, error) {
	if userID == "" {
		return nil, deps.Errors.AccountNotFound
	}
	acct, err := deps.Accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, deps.MapRepoError(err)
	}
	if err := CheckLoginEligibility(acct.Status, deps.Now(), deps.LockoutDuration, deps.Errors.Eligibility); err != nil {
		return nil, err
	}
	return acct, nil
}

func (d *TwoFactorDeps) checkPassword(plain, hash string) error {
	ok, err := d.Password.Verify(plain, hash)
	if err != nil {
		return errors.Join(d.Errors.Hash, err)
	}
	if !ok {
		return d.Errors.InvalidPassword
	}
	return nil
}

// RunSetupTwoFactor issues a new pending secret. A pending secret from an earlier
// setup is replaced.
func RunSetupTwoFactor(ctx context.Context, userID, password string, deps TwoFactorDeps) (*TwoFactorSetup, error) {
	deps.normalize()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := loadEligible(ctx, userID, &deps)
	if err != nil {
		return nil, err
	}
	if err := deps.checkPassword(password, acct.PasswordHash); err != nil {
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", err, nil)
		return nil, err
	}

	switch acct.TwoFactor.(type) {
	case account.TwoFactorEnabled:
		return nil, deps.Errors.AlreadyEnabled
	case account.TwoFactorDisabled, account.TwoFactorPending, nil:
	default:
		return nil, account.ErrUnknownTwoFactor
	}

	secret, uri, err := deps.GenerateSecret(acct.Email)
	if err != nil {
		return nil, err
	}

	next := acct.Clone()
	next.TwoFactor = account.TwoFactorPending{Secret: secret, QRCodeURL: uri}
	next.UpdatedAt = deps.Now()
	if err := deps.Accounts.Update(ctx, next); err != nil {
		return nil, deps.MapRepoError(err)
	}

	deps.MetricInc(deps.Metrics.SetupRequested)
	deps.EmitAudit(ctx, deps.Events.SetupRequested, true, userID, "", nil, nil)
	return &TwoFactorSetup{Secret: secret, ProvisioningURI: uri}, nil
}

// RunVerifyTwoFactor confirms a pending enrollment and returns the plaintext backup
// codes. They are not retrievable afterwards.
func RunVerifyTwoFactor(ctx context.Context, userID, code string, deps TwoFactorDeps) ([]string, error) {
	deps.normalize()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := loadEligible(ctx, userID, &deps)
	if err != nil {
		return nil, err
	}

	var pending account.TwoFactorPending
	switch tf := acct.TwoFactor.(type) {
	case account.TwoFactorPending:
		pending = tf
	case account.TwoFactorDisabled, account.TwoFactorEnabled, nil:
		return nil, deps.Errors.NotPending
	default:
		return nil, account.ErrUnknownTwoFactor
	}

	if err := deps.Attempts.admit(ctx, acct.ID, &deps.Hooks); err != nil {
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", err, nil)
		return nil, err
	}
	now := deps.Now()
	if !deps.VerifyTOTP(pending.Secret, strings.TrimSpace(code), now) {
		deps.Attempts.failed(ctx, acct.ID, &deps.Hooks)
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", deps.Errors.InvalidCode, nil)
		return nil, deps.Errors.InvalidCode
	}
	deps.Attempts.passed(ctx, acct.ID, &deps.Hooks)

	codes, digests, err := GenerateBackupCodes(acct.ID, deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
	if err != nil {
		return nil, errors.Join(deps.Errors.BackupCodeFailed, err)
	}

	next := acct.Clone()
	next.TwoFactor = account.TwoFactorEnabled{Secret: pending.Secret, BackupCodes: digests}
	next.UpdatedAt = now
	if err := deps.Accounts.Update(ctx, next); err != nil {
		return nil, deps.MapRepoError(err)
	}

	deps.MetricInc(deps.Metrics.Enabled)
	deps.EmitAudit(ctx, deps.Events.Enabled, true, userID, "", nil, nil)

	if deps.NotifyEnabled != nil {
		if err := deps.NotifyEnabled(ctx, next); err != nil {
			deps.MetricInc(deps.Metrics.NotifierFailure)
			deps.Warn("two_factor.notify_enabled", userID, err)
		}
	}

	return codes, nil
}

// RunDisableTwoFactor requires both the password and a valid TOTP or unused backup code.
func RunDisableTwoFactor(ctx context.Context, userID, password, code string, deps TwoFactorDeps) error {
	deps.normalize()
	if !deps.ready() {
		return deps.Errors.EngineNotReady
	}

	acct, err := loadEligible(ctx, userID, &deps)
	if err != nil {
		return err
	}
	enabled, err := requireEnabled(acct, &deps)
	if err != nil {
		return err
	}
	if err := deps.checkPassword(password, acct.PasswordHash); err != nil {
		deps.EmitAudit(ctx, deps.Events.Failure, false, userID, "", err, nil)
		return err
	}

	acct, err = deps.verifyManagementCode(ctx, acct, enabled, code)
	if err != nil {
		return err
	}

	next := acct.Clone()
	next.TwoFactor = account.TwoFactorDisabled{}
	next.UpdatedAt = deps.Now()
	if err := deps.Accounts.Update(ctx, next); err != nil {
		return deps.MapRepoError(err)
	}

	deps.MetricInc(deps.Metrics.Disabled)
	deps.EmitAudit(ctx, deps.Events.Disabled, true, userID, "", nil, nil)
	return nil
}

// RunRegenerateBackupCodes replaces the whole backup code set. Old codes stop
// working as soon as the update commits.
func RunRegenerateBackupCodes(ctx context.Context, userID, code string, deps TwoFactorDeps) ([]string, error) {
	deps.normalize()
	if !deps.ready() {
		return nil, deps.Errors.EngineNotReady
	}

	acct, err := loadEligible(ctx, userID, &deps)
	if err != nil {
		return nil, err
	}
	enabled, err := requireEnabled(acct, &deps)
	if err != nil {
		return nil, err
	}

	acct, err = deps.verifyManagementCode(ctx, acct, enabled, code)
	if err != nil {
		return nil, err
	}
	enabled, err = requireEnabled(acct, &deps)
	if err != nil {
		return nil, err
	}

	codes, digests, err := GenerateBackupCodes(acct.ID, deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
	if err != nil {
		return nil, errors.Join(deps.Errors.BackupCodeFailed, err)
	}

	next := acct.Clone()
	next.TwoFactor = account.TwoFactorEnabled{Secret: enabled.Secret, BackupCodes: digests}
	next.UpdatedAt = deps.Now()
	if err := deps.Accounts.Update(ctx, next); err != nil {
		return nil, deps.MapRepoError(err)
	}

	deps.MetricInc(deps.Metrics.BackupCodesRegenerated)
	deps.EmitAudit(ctx, deps.Events.BackupCodesGenerated, true, userID, "", nil, func() map[string]string {
		return map[string]string{"count": strconv.Itoa(len(codes))}
	})
	return codes, nil
}

func requireEnabled(acct *account.Account, deps *TwoFactorDeps) (account.TwoFactorEnabled, error) {
	switch tf := acct.TwoFactor.(type) {
	case account.TwoFactorEnabled:
		return tf, nil
	case account.TwoFactorDisabled, account.TwoFactorPending, nil:
		return account.TwoFactorEnabled{}, deps.Errors.NotEnabled
	default:
		return account.TwoFactorEnabled{}, account.ErrUnknownTwoFactor
	}
}

// verifyManagementCode checks code and, when a backup code was consumed, reloads the
// account so the following compare-and-swap sees the version the consumption wrote.
func (d *TwoFactorDeps) verifyManagementCode(ctx context.Context, acct *account.Account, tf account.TwoFactorEnabled, code string) (*account.Account, error) {
	if err := d.Attempts.admit(ctx, acct.ID, &d.Hooks); err != nil {
		d.MetricInc(d.Metrics.Failure)
		d.EmitAudit(ctx, d.Events.Failure, false, acct.ID, "", err, nil)
		return nil, err
	}
	outcome, err := VerifySecondFactor(ctx, acct, tf, code, d.VerifyTOTP, d.Now(), d.Accounts, d.MapRepoError, d.Errors.InvalidCode)
	if err != nil {
		if errors.Is(err, d.Errors.InvalidCode) {
			d.Attempts.failed(ctx, acct.ID, &d.Hooks)
			d.MetricInc(d.Metrics.Failure)
			d.EmitAudit(ctx, d.Events.Failure, false, acct.ID, "", err, nil)
		}
		return nil, err
	}
	d.Attempts.passed(ctx, acct.ID, &d.Hooks)
	if !outcome.BackupCodeUsed {
		return acct, nil
	}

	d.MetricInc(d.Metrics.BackupCodeUsed)
	d.EmitAudit(ctx, d.Events.BackupCodeUsed, true, acct.ID, "", nil, func() map[string]string {
		return map[string]string{"remaining": strconv.Itoa(outcome.RemainingCodes)}
	})
	fresh, err := d.Accounts.FindByID(ctx, acct.ID)
	if err != nil {
		return nil, d.MapRepoError(err)
	}
	return fresh, nil
}
