package authcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/session"
)

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong password
	// alike. It carries no detail by construction.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidPassword is returned when a management operation's password check fails.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidCode is returned for a second-factor code that is neither a valid TOTP
	// nor an unused backup code.
	ErrInvalidCode = errors.New("invalid code")
	// ErrInvalidTwoFactorCode is the login-time form of ErrInvalidCode.
	ErrInvalidTwoFactorCode = &codeError{msg: "invalid two-factor code"}
	// ErrTwoFactorRequired is returned when the password was correct but no second
	// factor was supplied.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrTwoFactorRateLimited is returned while an account has run out of
	// second-factor attempts. The code is not checked.
	ErrTwoFactorRateLimited = errors.New("too many two-factor attempts")
	// ErrWeakPassword wraps the policy rule that rejected a new password.
	ErrWeakPassword = errors.New("password does not meet strength policy")
	// ErrPasswordReused is returned when a new password matches the current one or a
	// recent history entry.
	ErrPasswordReused = errors.New("password was used recently")
	// ErrEmailVerificationInvalid is returned for a wrong or missing verification token.
	ErrEmailVerificationInvalid = errors.New("email verification token invalid")
	// ErrEmailVerificationExpired is returned when the verification token has expired.
	ErrEmailVerificationExpired = errors.New("email verification token expired")

	// ErrAccountLocked is matched by every *AccountLockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountSuspended is matched by every *AccountSuspendedError.
	ErrAccountSuspended = errors.New("account suspended")
	ErrAccountDeleted   = errors.New("account deleted")
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountNotFound is returned by operations that address an account by id.
	ErrAccountNotFound         = errors.New("account not found")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotPending     = errors.New("two-factor enrollment not pending")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")
	// ErrConcurrentUpdate is returned when the account changed between read and write.
	// Retrying the operation is safe.
	ErrConcurrentUpdate  = errors.New("account modified concurrently")
	ErrInvalidTransition = errors.New("invalid account status transition")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")

	// ErrDatabase is joined with repository and session store failures.
	ErrDatabase = errors.New("database error")
	// ErrHash is joined with password hashing and verification failures.
	ErrHash = errors.New("password hash error")
	// ErrTokenGeneration is joined with random source failures.
	ErrTokenGeneration = errors.New("secure token generation failed")
	// ErrEngineNotReady is returned when the engine was not built with the required
	// dependencies.
	ErrEngineNotReady = errors.New("engine not ready")
)

type codeError struct {
	msg string
}

func (e *codeError) Error() string { return e.msg }

// Is makes ErrInvalidTwoFactorCode match ErrInvalidCode.
func (e *codeError) Is(target error) bool {
	return target == ErrInvalidCode
}

// AccountLockedError is returned while an account is locked. Until is zero when the
// lock only lifts through UnlockAccount.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	if e.Until.IsZero() {
		return ErrAccountLocked.Error()
	}
	return ErrAccountLocked.Error() + " until " + e.Until.UTC().Format(time.RFC3339)
}

func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// AccountSuspendedError is returned for a suspended account.
type AccountSuspendedError struct {
	Reason string
}

func (e *AccountSuspendedError) Error() string {
	if e.Reason == "" {
		return ErrAccountSuspended.Error()
	}
	return ErrAccountSuspended.Error() + ": " + e.Reason
}

func (e *AccountSuspendedError) Is(target error) bool {
	return target == ErrAccountSuspended
}

func accountLockedError(until time.Time) error {
	return &AccountLockedError{Until: until}
}

func accountSuspendedError(reason string) error {
	return &AccountSuspendedError{Reason: reason}
}

// mapRepoError translates account repository errors into engine errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, account.ErrNotFound):
		return ErrAccountNotFound
	case errors.Is(err, account.ErrConflict):
		return ErrConcurrentUpdate
	default:
		return errors.Join(ErrDatabase, err)
	}
}

// mapSessionError translates session manager errors into engine errors.
func mapSessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, session.ErrTokenGeneration):
		return errors.Join(ErrTokenGeneration, err)
	default:
		return errors.Join(ErrDatabase, err)
	}
}
