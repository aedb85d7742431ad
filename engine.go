package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/account"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/rs/zerolog"
)

// Engine is the authentication core. It is safe for concurrent use once built.
type Engine struct {
	config     Config
	accounts   account.Repository
	sessions   *session.Manager
	counter    FailureCounter
	attempts   SecondFactorLimiter
	hasher     PasswordHasher
	policy     password.Policy
	totp       *totpManager
	lockout    LockoutPolicy
	notifier   Notifier
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	jwtManager *jwt.Manager
	logger     zerolog.Logger
	now        func() time.Time
	dummyHash  string
}

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the buffer was
// full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and histograms. It returns empty maps
// when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTokens returns the access token manager, or nil when JWT is disabled.
func (e *Engine) AccessTokens() *jwt.Manager {
	if e == nil {
		return nil
	}
	return e.jwtManager
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.accounts != nil && e.sessions != nil && e.hasher != nil && e.totp != nil
}

func (e *Engine) hooks() flows.Hooks {
	return flows.Hooks{
		Now:       e.now,
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		Warn:      e.logWarn,
		Info:      e.logInfo,
	}
}

func (e *Engine) passwordFuncs() flows.PasswordFuncs {
	return flows.PasswordFuncs{
		Verify: e.hasher.Verify,
		Hash:   e.hasher.Hash,
	}
}

func (e *Engine) eligibilityErrors() flows.EligibilityErrors {
	return flows.EligibilityErrors{
		AccountLocked:    accountLockedError,
		AccountSuspended: accountSuspendedError,
		AccountDeleted:   ErrAccountDeleted,
		EmailNotVerified: ErrEmailNotVerified,
	}
}

func (e *Engine) recordFailure(ctx context.Context, userID string) (int, error) {
	return e.counter.Record(ctx, userID)
}

func (e *Engine) resetFailures(ctx context.Context, userID string) error {
	return e.counter.Reset(ctx, userID)
}

// failureFuncs returns nil funcs when no counter is configured.
func (e *Engine) failureFuncs() (func(context.Context, string) (int, error), func(context.Context, string) error) {
	if e.counter == nil {
		return nil, nil
	}
	return e.recordFailure, e.resetFailures
}

// attemptGuard adapts the second-factor limiter. A nil limiter admits every code.
func (e *Engine) attemptGuard() flows.AttemptGuard {
	if e.attempts == nil {
		return flows.AttemptGuard{}
	}
	return flows.AttemptGuard{
		Check: func(ctx context.Context, userID string) error {
			err := e.attempts.Check(ctx, userID)
			if errors.Is(err, limiters.ErrTooManyAttempts) {
				return ErrTwoFactorRateLimited
			}
			return err
		},
		RecordFailure: e.attempts.RecordFailure,
		Reset:         e.attempts.Reset,
		Limited:       ErrTwoFactorRateLimited,
	}
}

func (e *Engine) logWarn(op, userID string, err error) {
	e.logger.Warn().Err(err).Str("op", op).Str("user_id", userID).Msg("operation degraded")
}

func (e *Engine) logInfo(op, userID, msg string) {
	e.logger.Info().Str("op", op).Str("user_id", userID).Msg(msg)
}
