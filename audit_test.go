package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/account"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	env := newTestEnv(t, withAuditSink(sink), withConfig(func(c *Config) { c.Audit.Enabled = false }))
	env.createAccount(t, testEmail, testPassword, account.Active{})

	_, _ = env.engine.Login(WithClientIP(context.Background(), "203.0.113.1"), LoginRequest{Email: testEmail, Password: "Wrong-Password-1"})
	env.engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
	if env.engine.AuditDropped() != 0 {
		t.Fatal("expected no drops with audit disabled")
	}
}

func TestAuditEventCarriesRequestFields(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})

	ctx := WithClientIP(context.Background(), "198.51.100.33")
	_, _ = env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: "Wrong-Password-1"})

	events := env.auditEvents()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventType != auditEventLoginFailure || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.IP != "198.51.100.33" {
		t.Fatalf("expected IP 198.51.100.33, got %q", ev.IP)
	}
	if ev.UserID != acct.ID {
		t.Fatalf("expected user id %q, got %q", acct.ID, ev.UserID)
	}
	if ev.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("expected invalid_credentials code, got %q", ev.Error)
	}
	if !ev.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("expected engine clock timestamp, got %v", ev.Timestamp)
	}
}

func TestAuditUnknownEmailHasNoUserID(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.engine.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: testPassword})

	events := env.auditEvents()
	if len(events) != 1 || events[0].UserID != "" {
		t.Fatalf("unexpected events %+v", events)
	}
	for _, v := range events[0].Metadata {
		if strings.Contains(v, "ghost") {
			t.Fatal("email leaked into audit metadata")
		}
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	env := newTestEnv(t)
	acct := env.createAccount(t, testEmail, testPassword, account.Active{})
	ctx := context.Background()

	res, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	setup, err := env.engine.SetupTwoFactor(ctx, acct.ID, testPassword)
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	codes, err := env.engine.VerifyTwoFactor(ctx, acct.ID, codeAt(t, setup.Secret, env.clock.Now()))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := env.engine.Login(ctx, LoginRequest{Email: testEmail, Password: testPassword, TwoFactorCode: codes[0]}); err != nil {
		t.Fatalf("backup code login failed: %v", err)
	}
	if _, err := env.engine.ChangePassword(ctx, ChangePasswordRequest{
		UserID:          acct.ID,
		CurrentPassword: testPassword,
		NewPassword:     "Another-Horse-43",
	}); err != nil {
		t.Fatalf("change password failed: %v", err)
	}

	needles := []string{testPassword, "Another-Horse-43", res.RefreshToken, acct.PasswordHash, setup.Secret, codes[0]}

	events := env.auditEvents()
	if len(events) < 5 {
		t.Fatalf("expected audit events for every operation, got %d", len(events))
	}
	for _, ev := range events {
		for _, needle := range needles {
			if strings.Contains(ev.Error, needle) {
				t.Fatalf("sensitive value leaked in audit error field of %s", ev.EventType)
			}
			for k, v := range ev.Metadata {
				if strings.Contains(k, needle) || strings.Contains(v, needle) {
					t.Fatalf("sensitive value leaked in audit metadata of %s", ev.EventType)
				}
			}
		}
	}
}

func TestAuditErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrInvalidCredentials, auditErrInvalidCredentials},
		{ErrInvalidTwoFactorCode, auditErrInvalidCode},
		{accountLockedError(time.Now()), auditErrAccountLocked},
		{accountSuspendedError("x"), auditErrAccountSuspended},
		{errors.Join(ErrWeakPassword, errors.New("rule")), auditErrWeakPassword},
		{ErrTwoFactorNotPending, auditErrTwoFactorState},
		{ErrConcurrentUpdate, auditErrConflict},
		{errors.Join(ErrDatabase, errors.New("dial tcp")), auditErrUnavailable},
		{ErrSessionExpired, auditErrSessionNotFound},
		{errors.New("boom"), auditErrInternal},
	}
	for _, tc := range tests {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: auditEventLoginSuccess,
		UserID:    "u1",
		IP:        "127.0.0.1",
		Success:   true,
	})

	if !buf.Contains("login_success") {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains("\"user_id\":\"u1\"") {
		t.Fatal("expected JSON log line to contain user id")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
