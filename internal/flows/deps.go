package flows

import (
	"context"
	"errors"
	"time"
)

// AuditFunc emits one audit event. The metadata builder is only called when auditing
// is enabled.
type AuditFunc func(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, metadata func() map[string]string)

// Hooks are the observability callbacks shared by every flow. Any nil hook is a no-op.
type Hooks struct {
	Now       func() time.Time
	MetricInc func(int)
	EmitAudit AuditFunc
	// Warn reports an infrastructure error that the flow swallowed.
	Warn func(op, userID string, err error)
	Info func(op, userID, msg string)
}

func (h *Hooks) normalize() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, string, error) {}
	}
	if h.Info == nil {
		h.Info = func(string, string, string) {}
	}
}

// PasswordFuncs are the injected password capabilities.
type PasswordFuncs struct {
	Verify func(plain, hash string) (bool, error)
	Hash   func(plain string) (string, error)
}

// TOTPFunc reports whether code is valid for secret at the given instant.
type TOTPFunc func(secret, code string, at time.Time) bool

// AttemptGuard throttles second-factor guesses per account. A zero guard admits
// every attempt.
type AttemptGuard struct {
	// Check returns Limited while the account is cooling down. Any other error is a
	// backend failure: it is logged and the attempt is admitted.
	Check         func(ctx context.Context, userID string) error
	RecordFailure func(ctx context.Context, userID string) error
	Reset         func(ctx context.Context, userID string) error
	Limited       error
}

func (g AttemptGuard) admit(ctx context.Context, userID string, h *Hooks) error {
	if g.Check == nil {
		return nil
	}
	err := g.Check(ctx, userID)
	if err == nil {
		return nil
	}
	if g.Limited != nil && errors.Is(err, g.Limited) {
		return g.Limited
	}
	h.Warn("two_factor.attempts.check", userID, err)
	return nil
}

func (g AttemptGuard) failed(ctx context.Context, userID string, h *Hooks) {
	if g.RecordFailure == nil {
		return
	}
	if err := g.RecordFailure(ctx, userID); err != nil {
		h.Warn("two_factor.attempts.record", userID, err)
	}
}

func (g AttemptGuard) passed(ctx context.Context, userID string, h *Hooks) {
	if g.Reset == nil {
		return
	}
	if err := g.Reset(ctx, userID); err != nil {
		h.Warn("two_factor.attempts.reset", userID, err)
	}
}
