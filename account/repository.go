package account

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned by Update when the stored Version differs from the caller's.
	ErrConflict = errors.New("account version conflict")
	// ErrBackupCodeNotFound is returned by ConsumeBackupCode when the digest is not present.
	ErrBackupCodeNotFound = errors.New("backup code not found")
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Repository is the persistence contract for accounts.
//
// Implementations must make Update a compare-and-swap on Version and make
// ConsumeBackupCode an atomic remove-if-present, so concurrent callers cannot both
// succeed.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)

	// Update persists acct if the stored Version equals acct.Version and advances
	// acct.Version on success.
	Update(ctx context.Context, acct *Account) error

	// RecordLogin sets LastLoginAt and LastLoginIP without touching status fields.
	RecordLogin(ctx context.Context, id string, at time.Time, ip string) error

	// ConsumeBackupCode removes digest from an enabled second factor and reports how
	// many codes remain.
	ConsumeBackupCode(ctx context.Context, id, digest string) (int, error)
}
