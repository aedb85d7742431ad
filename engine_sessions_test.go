package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/account"
)

func (env *testEnv) login(t *testing.T, rememberMe bool, agent string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), LoginRequest{
		Email:      testEmail,
		Password:   testPassword,
		UserAgent:  agent,
		RememberMe: rememberMe,
	})
	require.NoError(t, err)
	return res
}

func TestListSessionsOrderingAndExpiry(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()

	a := env.login(t, true, "laptop")
	env.clock.Advance(time.Hour)
	b := env.login(t, false, "phone")
	env.clock.Advance(time.Hour)
	c := env.login(t, false, "tablet")
	env.clock.Advance(time.Hour)
	require.NoError(t, env.engine.TouchSession(ctx, acct.ID, a.SessionID))

	sessions, err := env.engine.ListSessions(ctx, acct.ID, c.SessionID)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, []string{a.SessionID, c.SessionID, b.SessionID},
		[]string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	assert.True(t, sessions[1].Current)
	assert.False(t, sessions[0].Current)
	assert.True(t, sessions[0].RememberMe)

	// b was issued at +1h with a 24h lifetime.
	env.clock.Advance(22 * time.Hour)
	sessions, err = env.engine.ListSessions(ctx, acct.ID, "")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, a.SessionID, sessions[0].ID)
	assert.Equal(t, c.SessionID, sessions[1].ID)

	err = env.engine.TouchSession(ctx, acct.ID, b.SessionID)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestListSessionsEmpty(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})

	sessions, err := env.engine.ListSessions(context.Background(), acct.ID, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLogoutRequiresOwnership(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()
	res := env.login(t, false, "laptop")

	err := env.engine.Logout(ctx, "someone-else", res.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	err = env.engine.TouchSession(ctx, "someone-else", res.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, env.engine.Logout(ctx, acct.ID, res.SessionID))
	err = env.engine.Logout(ctx, acct.ID, res.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sessions, err := env.engine.ListSessions(ctx, acct.ID, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, uint64(1), env.engine.MetricsSnapshot().Counters[MetricSessionRevoked])
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		env.login(t, false, "agent")
	}

	n, err := env.engine.LogoutAll(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sessions, err := env.engine.ListSessions(ctx, acct.ID, "")
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Equal(t, uint64(3), env.engine.MetricsSnapshot().Counters[MetricSessionRevoked])

	n, err = env.engine.LogoutAll(ctx, acct.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionsFailWhenRedisIsDown(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testEmail, testPassword, account.Active{})
	env.mr.Close()

	_, err := env.engine.Login(context.Background(), LoginRequest{Email: testEmail, Password: testPassword})
	assert.ErrorIs(t, err, ErrDatabase)
}
