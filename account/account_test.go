package account

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainVerify(plain, hash string) (bool, error) {
	if strings.HasPrefix(hash, "bad:") {
		return false, errors.New("malformed hash")
	}
	return hash == "h:"+plain, nil
}

func TestCheckPasswordHistoryWindow(t *testing.T) {
	history := []string{"h:p1", "h:p2", "h:p3", "h:p4", "h:p5"}

	for _, p := range []string{"p1", "p2", "p3"} {
		reused, err := CheckPasswordHistory(plainVerify, p, history, 0)
		require.NoError(t, err)
		assert.True(t, reused, "expected %s to be reported as reused", p)
	}

	for _, p := range []string{"p4", "p5", "fresh"} {
		reused, err := CheckPasswordHistory(plainVerify, p, history, 0)
		require.NoError(t, err)
		assert.False(t, reused, "expected %s outside the reuse window", p)
	}
}

func TestCheckPasswordHistoryShortHistory(t *testing.T) {
	reused, err := CheckPasswordHistory(plainVerify, "p1", []string{"h:p1"}, 3)
	require.NoError(t, err)
	assert.True(t, reused)

	reused, err = CheckPasswordHistory(plainVerify, "p1", nil, 3)
	require.NoError(t, err)
	assert.False(t, reused)
}

func TestCheckPasswordHistoryVerifierError(t *testing.T) {
	_, err := CheckPasswordHistory(plainVerify, "p1", []string{"bad:x"}, 3)
	require.Error(t, err)
}

func TestPushPasswordHistoryCapsAndOrders(t *testing.T) {
	history := []string{"h4", "h3", "h2", "h1", "h0"}
	next := PushPasswordHistory(history, "h5", 0)

	require.Len(t, next, PasswordHistorySize)
	assert.Equal(t, []string{"h5", "h4", "h3", "h2", "h1"}, next)
	assert.Equal(t, "h4", history[0], "input slice must not be modified")
}

func TestPushPasswordHistoryGrows(t *testing.T) {
	next := PushPasswordHistory(nil, "h1", 0)
	assert.Equal(t, []string{"h1"}, next)
	next = PushPasswordHistory(next, "h2", 0)
	assert.Equal(t, []string{"h2", "h1"}, next)
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   StatusKind
		ok   bool
	}{
		{Unverified{}, KindActive, true},
		{Unverified{}, KindLocked, false},
		{Active{}, KindLocked, true},
		{Active{}, KindSuspended, true},
		{Locked{}, KindActive, true},
		{Suspended{}, KindActive, true},
		{Suspended{}, KindLocked, false},
		{Deleted{}, KindActive, false},
		{Deleted{}, KindDeleted, false},
	}

	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from.Kind(), tc.to)
		} else {
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from.Kind(), tc.to)
		}
	}

	assert.ErrorIs(t, CanTransition(nil, KindActive), ErrUnknownStatus)
}

func TestLockedLapsed(t *testing.T) {
	lockedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := Locked{LockedAt: lockedAt, FailedAttempts: 5}

	assert.False(t, l.Lapsed(lockedAt.Add(29*time.Minute), 30*time.Minute))
	assert.True(t, l.Lapsed(lockedAt.Add(30*time.Minute), 30*time.Minute))
	assert.False(t, l.Lapsed(lockedAt.Add(24*time.Hour), 0), "zero duration never lapses")
	assert.Equal(t, lockedAt.Add(30*time.Minute), l.LockExpiry(30*time.Minute))
	assert.True(t, l.LockExpiry(0).IsZero())
}

func TestStatusKindRoundTrip(t *testing.T) {
	for _, s := range []Status{Unverified{}, Active{}, Locked{}, Suspended{}, Deleted{}} {
		k, err := ParseStatusKind(s.Kind().String())
		require.NoError(t, err)
		assert.Equal(t, s.Kind(), k)
	}
	_, err := ParseStatusKind("frozen")
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestCloneIsDeep(t *testing.T) {
	now := time.Now()
	a := &Account{
		ID:              "u1",
		PasswordHistory: []string{"h1"},
		LastLoginAt:     &now,
		TwoFactor:       TwoFactorEnabled{Secret: "S", BackupCodes: []string{"c1", "c2"}},
	}
	c := a.Clone()
	c.PasswordHistory[0] = "changed"
	c.TwoFactor.(TwoFactorEnabled).BackupCodes[0] = "changed"

	assert.Equal(t, "h1", a.PasswordHistory[0])
	assert.Equal(t, "c1", a.TwoFactor.(TwoFactorEnabled).BackupCodes[0])
	assert.NotSame(t, a.LastLoginAt, c.LastLoginAt)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}
