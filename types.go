package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/account"
	"github.com/MrEthical07/authcore/session"
)

// LoginRequest is the input to Engine.Login. Email is matched case-insensitively.
type LoginRequest struct {
	Email         string
	Password      string
	TwoFactorCode string
	IPAddress     string
	UserAgent     string
	RememberMe    bool
}

// LoginResult is returned by a successful Engine.Login.
//
// RefreshToken is the only copy of the session secret; the store keeps its digest.
// AccessToken is empty unless JWT is enabled.
type LoginResult struct {
	UserID               string
	SessionID            string
	RefreshToken         string
	AccessToken          string
	ExpiresAt            time.Time
	RequiresTwoFactor    bool
	BackupCodeUsed       bool
	RemainingBackupCodes int
}

// ChangePasswordRequest is the input to Engine.ChangePassword. CurrentSessionID
// survives session revocation.
type ChangePasswordRequest struct {
	UserID           string
	CurrentPassword  string
	NewPassword      string
	CurrentSessionID string
}

// TwoFactorSetup carries the pending TOTP secret. Rendering ProvisioningURI as a QR
// code is left to the caller.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// SessionInfo is the listing view of a session.
type SessionInfo = session.Info

// PasswordHasher hashes and verifies password digests. Verify must run in constant
// time with respect to the password and return (false, nil) on a mismatch.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// FailureCounter counts sub-threshold password failures per account. Record returns
// the count after the increment.
type FailureCounter interface {
	Record(ctx context.Context, userID string) (int, error)
	Reset(ctx context.Context, userID string) error
}

// SecondFactorLimiter caps wrong second-factor codes per account. Check returns
// ErrTwoFactorRateLimited while the account is cooling down; any other error lets
// the attempt through.
type SecondFactorLimiter interface {
	Check(ctx context.Context, userID string) error
	RecordFailure(ctx context.Context, userID string) error
	Reset(ctx context.Context, userID string) error
}

// Notifier receives security notifications. Errors are logged and never fail the
// operation that triggered them.
type Notifier interface {
	PasswordChanged(ctx context.Context, acct *account.Account) error
	TwoFactorEnabled(ctx context.Context, acct *account.Account) error
}

// NotifierFuncs adapts plain functions to Notifier. Nil fields are skipped.
type NotifierFuncs struct {
	OnPasswordChanged  func(ctx context.Context, acct *account.Account) error
	OnTwoFactorEnabled func(ctx context.Context, acct *account.Account) error
}

func (n NotifierFuncs) PasswordChanged(ctx context.Context, acct *account.Account) error {
	if n.OnPasswordChanged == nil {
		return nil
	}
	return n.OnPasswordChanged(ctx, acct)
}

func (n NotifierFuncs) TwoFactorEnabled(ctx context.Context, acct *account.Account) error {
	if n.OnTwoFactorEnabled == nil {
		return nil
	}
	return n.OnTwoFactorEnabled(ctx, acct)
}
