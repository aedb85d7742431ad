package account

import (
	"strings"
	"time"
)

// Role is the coarse authorization role attached to an account.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}

// Account is a user record as seen by the authentication engine.
//
// Version is the optimistic-concurrency token. Repositories advance it on every
// successful Update and reject writes made against a stale value.
type Account struct {
	ID              string
	Email           string
	Name            string
	Role            Role
	PasswordHash    string
	PasswordHistory []string

	Status    Status
	TwoFactor TwoFactor

	LastLoginAt          *time.Time
	LastLoginIP          string
	LastPasswordChangeAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time

	Version uint64
}

// Clone returns a deep copy so callers can mutate the result without touching
// repository-owned state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	out := *a
	if a.PasswordHistory != nil {
		out.PasswordHistory = append([]string(nil), a.PasswordHistory...)
	}
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		out.LastLoginAt = &t
	}
	if a.LastPasswordChangeAt != nil {
		t := *a.LastPasswordChangeAt
		out.LastPasswordChangeAt = &t
	}
	if enabled, ok := a.TwoFactor.(TwoFactorEnabled); ok {
		enabled.BackupCodes = append([]string(nil), enabled.BackupCodes...)
		out.TwoFactor = enabled
	}
	return &out
}

// NormalizeEmail is the canonical form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
