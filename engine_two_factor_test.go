package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/account"
)

// enrollTwoFactor runs setup and verification and returns the secret and backup codes.
func enrollTwoFactor(t *testing.T, env *testEnv, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.SetupTwoFactor(ctx, userID, testPassword)
	require.NoError(t, err)
	require.Len(t, setup.Secret, 32)
	require.True(t, strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/"))

	codes, err := env.engine.VerifyTwoFactor(ctx, userID, codeAt(t, setup.Secret, env.clock.Now()))
	require.NoError(t, err)
	return setup.Secret, codes
}

func TestTwoFactorRoundTrip(t *testing.T) {
	var notified atomic.Int32
	env := newTestEnv(t, withNotifier(NotifierFuncs{
		OnTwoFactorEnabled: func(context.Context, *account.Account) error {
			notified.Add(1)
			return nil
		},
	}))
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()

	secret, codes := enrollTwoFactor(t, env, acct.ID)
	require.Len(t, codes, 8)
	assert.Equal(t, int32(1), notified.Load())

	stored := env.load(t, acct.ID)
	enabled, ok := stored.TwoFactor.(account.TwoFactorEnabled)
	require.True(t, ok, "expected two-factor enabled")
	assert.Equal(t, secret, enabled.Secret)
	require.Len(t, enabled.BackupCodes, 8)
	for i, c := range codes {
		assert.NotEqual(t, c, enabled.BackupCodes[i], "backup codes must be stored as digests")
	}

	res, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
	require.ErrorIs(t, err, ErrTwoFactorRequired)
	require.NotNil(t, res)
	assert.True(t, res.RequiresTwoFactor)
	assert.Empty(t, res.SessionID)

	env.clock.Advance(2 * time.Minute)
	res, err = env.engine.Login(ctx, LoginRequest{
		Email:         testEmail,
		Password:      testPassword,
		TwoFactorCode: codeAt(t, secret, env.clock.Now()),
	})
	require.NoError(t, err)
	assert.False(t, res.BackupCodeUsed)
	assert.NotEmpty(t, res.SessionID)

	res, err = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: codes[0]})
	require.NoError(t, err)
	assert.True(t, res.BackupCodeUsed)
	assert.Equal(t, 7, res.RemainingBackupCodes)

	_, err = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: codes[0]})
	require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	assert.ErrorIs(t, err, ErrInvalidCode)

	// Backup codes are accepted regardless of case and separators.
	loose := strings.ToLower(strings.ReplaceAll(codes[1], "-", " "))
	res, err = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: loose})
	require.NoError(t, err)
	assert.Equal(t, 6, res.RemainingBackupCodes)

	snap := env.engine.MetricsSnapshot()
	assert.Equal(t, uint64(2), snap.Counters[MetricBackupCodeUsed])
	assert.Equal(t, uint64(1), snap.Counters[MetricTwoFactorRequired])
	assert.Equal(t, uint64(1), snap.Counters[MetricTwoFactorFailure])
	assert.Equal(t, uint64(1), snap.Counters[MetricTwoFactorEnabled])
}

func TestTwoFactorWrongCodeDoesNotLock(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	enrollTwoFactor(t, env, acct.ID)

	for i := 0; i < 5; i++ {
		_, err := env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: "000000"})
		require.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	}
	_, err := env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: "000000"})
	require.ErrorIs(t, err, ErrTwoFactorRateLimited)

	_, ok := env.load(t, acct.ID).Status.(account.Active)
	assert.True(t, ok, "second-factor failures must not lock the account")
}

func TestTwoFactorGuessesAreRateLimited(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	secret, codes := enrollTwoFactor(t, env, acct.ID)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: "000000"})
		require.ErrorIs(t, err, ErrInvalidTwoFactorCode, "attempt %d", i+1)
	}

	res, err := env.engine.Login(ctx, LoginRequest{
		Email:         testEmail,
		Password:      testPassword,
		TwoFactorCode: codeAt(t, secret, env.clock.Now()),
	})
	require.ErrorIs(t, err, ErrTwoFactorRateLimited)
	assert.Nil(t, res)
	assert.NotErrorIs(t, err, ErrInvalidCode)

	// Management operations share the same budget.
	_, err = env.engine.RegenerateBackupCodes(ctx, acct.ID, codes[0])
	require.ErrorIs(t, err, ErrTwoFactorRateLimited)
	enabled := env.load(t, acct.ID).TwoFactor.(account.TwoFactorEnabled)
	assert.Len(t, enabled.BackupCodes, 8, "a limited attempt must not consume a backup code")

	env.mr.FastForward(61 * time.Second)
	res, err = env.engine.Login(ctx, LoginRequest{
		Email:         testEmail,
		Password:      testPassword,
		TwoFactorCode: codeAt(t, secret, env.clock.Now()),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SessionID)
	assert.False(t, env.mr.Exists("ac:tf:"+acct.ID), "an accepted code clears the attempt counter")

	events := env.auditEvents()
	limited := 0
	for _, ev := range events {
		if ev.EventType == auditEventTwoFactorFailure && ev.Error == string(auditErrRateLimited) {
			limited++
		}
	}
	assert.Equal(t, 2, limited)
}

func TestBackupCodeConcurrentUseSucceedsOnce(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.TwoFactor.MaxAttempts = 100 }))
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	_, codes := enrollTwoFactor(t, env, acct.ID)

	const workers = 8
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		invalid   atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.Login(context.Background(), LoginRequest{
				Email:         testEmail,
				Password:      testPassword,
				TwoFactorCode: codes[3],
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrInvalidTwoFactorCode):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), invalid.Load())

	enabled := env.load(t, acct.ID).TwoFactor.(account.TwoFactorEnabled)
	assert.Len(t, enabled.BackupCodes, 7)
}

func TestTwoFactorStateErrors(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()

	_, err := env.engine.VerifyTwoFactor(ctx, acct.ID, "123456")
	assert.ErrorIs(t, err, ErrTwoFactorNotPending)

	err = env.engine.DisableTwoFactor(ctx, acct.ID, testPassword, "123456")
	assert.ErrorIs(t, err, ErrTwoFactorNotEnabled)

	_, err = env.engine.RegenerateBackupCodes(ctx, acct.ID, "123456")
	assert.ErrorIs(t, err, ErrTwoFactorNotEnabled)

	_, err = env.engine.SetupTwoFactor(ctx, acct.ID, "Wrong-Password-1")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = env.engine.SetupTwoFactor(ctx, "missing", testPassword)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	setup, err := env.engine.SetupTwoFactor(ctx, acct.ID, testPassword)
	require.NoError(t, err)
	_, ok := env.load(t, acct.ID).TwoFactor.(account.TwoFactorPending)
	assert.True(t, ok)

	// A pending secret is not enforced at login.
	_, err = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	_, err = env.engine.VerifyTwoFactor(ctx, acct.ID, "12ab56")
	assert.ErrorIs(t, err, ErrInvalidCode)

	// Setup again replaces the pending secret, and the old one stops verifying.
	again, err := env.engine.SetupTwoFactor(ctx, acct.ID, testPassword)
	require.NoError(t, err)
	assert.NotEqual(t, setup.Secret, again.Secret)
	_, err = env.engine.VerifyTwoFactor(ctx, acct.ID, codeAt(t, setup.Secret, env.clock.Now()))
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = env.engine.VerifyTwoFactor(ctx, acct.ID, codeAt(t, again.Secret, env.clock.Now()))
	require.NoError(t, err)

	_, err = env.engine.SetupTwoFactor(ctx, acct.ID, testPassword)
	assert.ErrorIs(t, err, ErrTwoFactorAlreadyEnabled)
}

func TestTwoFactorSetupRequiresEligibleAccount(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Suspended{Reason: "review"})

	_, err := env.engine.SetupTwoFactor(context.Background(), acct.ID, testPassword)
	assert.ErrorIs(t, err, ErrAccountSuspended)
}

func TestDisableTwoFactor(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()
	secret, codes := enrollTwoFactor(t, env, acct.ID)

	err := env.engine.DisableTwoFactor(ctx, acct.ID, "Wrong-Password-1", codeAt(t, secret, env.clock.Now()))
	assert.ErrorIs(t, err, ErrInvalidPassword)

	err = env.engine.DisableTwoFactor(ctx, acct.ID, testPassword, "999999")
	assert.ErrorIs(t, err, ErrInvalidCode)

	// A backup code works as the second factor too.
	require.NoError(t, env.engine.DisableTwoFactor(ctx, acct.ID, testPassword, codes[2]))

	_, ok := env.load(t, acct.ID).TwoFactor.(account.TwoFactorDisabled)
	assert.True(t, ok)

	_, err = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
	assert.NoError(t, err)
}

func TestRegenerateBackupCodes(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()
	secret, oldCodes := enrollTwoFactor(t, env, acct.ID)

	_, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: oldCodes[0]})
	require.NoError(t, err)

	_, err = env.engine.RegenerateBackupCodes(ctx, acct.ID, "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	fresh, err := env.engine.RegenerateBackupCodes(ctx, acct.ID, oldCodes[1])
	require.NoError(t, err)
	require.Len(t, fresh, 8)

	enabled := env.load(t, acct.ID).TwoFactor.(account.TwoFactorEnabled)
	assert.Equal(t, secret, enabled.Secret)
	assert.Len(t, enabled.BackupCodes, 8)

	_, err = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: oldCodes[2]})
	assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)

	res, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: fresh[0]})
	require.NoError(t, err)
	assert.Equal(t, 7, res.RemainingBackupCodes)

	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricBackupCodeRegenerated])
}
