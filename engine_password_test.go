package authcore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/password"
)

func passwordN(n int) string {
	return fmt.Sprintf("Rotated-Secret-%02d", n)
}

func (env *testEnv) changePassword(t *testing.T, userID, from, to, sessionID string) (int, error) {
	t.Helper()
	return env.engine.ChangePassword(context.Background(), ChangePasswordRequest{
		UserID:           userID,
		CurrentPassword:  from,
		NewPassword:      to,
		CurrentSessionID: sessionID,
	})
}

func TestChangePasswordRotatesHistory(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	originalHash := acct.PasswordHash

	_, err := env.changePassword(t, acct.ID, testPassword, passwordN(1), "")
	require.NoError(t, err)

	stored := env.load(t, acct.ID)
	require.Equal(t, []string{originalHash}, stored.PasswordHistory)
	require.NotNil(t, stored.LastPasswordChangeAt)
	assert.True(t, stored.LastPasswordChangeAt.Equal(env.clock.Now()))

	ok, err := env.hasher.Verify(passwordN(1), stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: testPassword})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: passwordN(1)})
	assert.NoError(t, err)
}

func TestChangePasswordHistoryIsBounded(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})

	current := testPassword
	var hashes []string
	for i := 1; i <= 7; i++ {
		hashes = append(hashes, env.load(t, acct.ID).PasswordHash)
		_, err := env.changePassword(t, acct.ID, current, passwordN(i), "")
		require.NoErrorf(t, err, "change %d", i)
		current = passwordN(i)
	}

	history := env.load(t, acct.ID).PasswordHistory
	require.Len(t, history, 5)
	// Most recent previous hash first.
	for i := 0; i < 5; i++ {
		assert.Equal(t, hashes[len(hashes)-1-i], history[i])
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})

	_, err := env.changePassword(t, acct.ID, testPassword, testPassword, "")
	require.ErrorIs(t, err, ErrPasswordReused)

	current := testPassword
	for i := 1; i <= 3; i++ {
		_, err := env.changePassword(t, acct.ID, current, passwordN(i), "")
		require.NoError(t, err)
		current = passwordN(i)
	}

	// testPassword is the third most recent previous password.
	_, err = env.changePassword(t, acct.ID, current, testPassword, "")
	require.ErrorIs(t, err, ErrPasswordReused)
	_, err = env.changePassword(t, acct.ID, current, passwordN(1), "")
	require.ErrorIs(t, err, ErrPasswordReused)

	_, err = env.changePassword(t, acct.ID, current, passwordN(4), "")
	require.NoError(t, err)

	// Now fourth most recent, outside the reuse window.
	_, err = env.changePassword(t, acct.ID, passwordN(4), testPassword, "")
	require.NoError(t, err)

	assert.Equal(t, uint64(3), env.engine.MetricsSnapshot().Counters[MetricPasswordChangeReuseRejected])
}

func TestChangePasswordRejectsWrongCurrentAndWeak(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	before := env.load(t, acct.ID)

	_, err := env.changePassword(t, acct.ID, "Wrong-Password-1", passwordN(1), "")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	for _, weak := range []string{"short1A", "alllowercase1", "NoDigitsHere", "12345678901"} {
		_, err := env.changePassword(t, acct.ID, testPassword, weak, "")
		assert.ErrorIsf(t, err, ErrWeakPassword, "password %q", weak)
		assert.ErrorIs(t, err, password.ErrPolicy)
	}

	after := env.load(t, acct.ID)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, before.Version, after.Version)

	_, err = env.changePassword(t, "missing", testPassword, passwordN(1), "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()

	var sessionIDs []string
	for i := 0; i < 3; i++ {
		res, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
		sessionIDs = append(sessionIDs, res.SessionID)
	}

	revoked, err := env.changePassword(t, acct.ID, testPassword, passwordN(1), sessionIDs[1])
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	sessions, err := env.engine.ListSessions(ctx, acct.ID, sessionIDs[1])
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sessionIDs[1], sessions[0].ID)
	assert.True(t, sessions[0].Current)
}

func TestChangePasswordKeepsSessionsWhenDisabled(t *testing.T) {
	env := newTestEnv(t, withConfig(func(c *Config) { c.Session.RevokeOnPasswordChange = false }))
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
		require.NoError(t, err)
	}

	revoked, err := env.changePassword(t, acct.ID, testPassword, passwordN(1), "")
	require.NoError(t, err)
	assert.Zero(t, revoked)

	sessions, err := env.engine.ListSessions(ctx, acct.ID, "")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestChangePasswordNotifierFailureIsNotFatal(t *testing.T) {
	var calls int
	env := newTestEnv(t, withNotifier(NotifierFuncs{
		OnPasswordChanged: func(_ context.Context, acct *account.Account) error {
			calls++
			return errors.New("smtp unavailable")
		},
	}))
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})

	_, err := env.changePassword(t, acct.ID, testPassword, passwordN(1), "")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	snap := env.engine.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[MetricNotifierFailure])
	assert.Equal(t, uint64(1), snap.Counters[MetricPasswordChangeSuccess])
}

func TestChangePasswordRequiresEligibleAccount(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Deleted{})

	_, err := env.changePassword(t, acct.ID, testPassword, passwordN(1), "")
	assert.ErrorIs(t, err, ErrAccountDeleted)
}
