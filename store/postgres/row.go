package postgres

import (
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/account"
)

var accountColumns = []string{
	"id",
	"email",
	"name",
	"role",
	"password_hash",
	"password_history",
	"status",
	"status_reason",
	"status_at",
	"failed_attempts",
	"verification_token",
	"verification_expiry",
	"two_factor",
	"totp_secret",
	"totp_qr_url",
	"backup_codes",
	"last_login_at",
	"last_login_ip",
	"last_password_change_at",
	"created_at",
	"updated_at",
	"version",
}

// accountRow is the flat column form of account.Account. Status and TwoFactor
// variants share the status_* and totp_* columns.
type accountRow struct {
	ID                   string
	Email                string
	Name                 string
	Role                 string
	PasswordHash         string
	PasswordHistory      []string
	Status               string
	StatusReason         string
	StatusAt             *time.Time
	FailedAttempts       int32
	VerificationToken    string
	VerificationExpiry   *time.Time
	TwoFactor            string
	TOTPSecret           string
	TOTPQRURL            string
	BackupCodes          []string
	LastLoginAt          *time.Time
	LastLoginIP          string
	LastPasswordChangeAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Version              int64
}

// dest returns scan targets in accountColumns order.
func (r *accountRow) dest() []any {
	return []any{
		&r.ID,
		&r.Email,
		&r.Name,
		&r.Role,
		&r.PasswordHash,
		&r.PasswordHistory,
		&r.Status,
		&r.StatusReason,
		&r.StatusAt,
		&r.FailedAttempts,
		&r.VerificationToken,
		&r.VerificationExpiry,
		&r.TwoFactor,
		&r.TOTPSecret,
		&r.TOTPQRURL,
		&r.BackupCodes,
		&r.LastLoginAt,
		&r.LastLoginIP,
		&r.LastPasswordChangeAt,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Version,
	}
}

// values returns column values in accountColumns order.
func (r *accountRow) values() []any {
	return []any{
		r.ID,
		r.Email,
		r.Name,
		r.Role,
		r.PasswordHash,
		r.PasswordHistory,
		r.Status,
		r.StatusReason,
		r.StatusAt,
		r.FailedAttempts,
		r.VerificationToken,
		r.VerificationExpiry,
		r.TwoFactor,
		r.TOTPSecret,
		r.TOTPQRURL,
		r.BackupCodes,
		r.LastLoginAt,
		r.LastLoginIP,
		r.LastPasswordChangeAt,
		r.CreatedAt,
		r.UpdatedAt,
		r.Version,
	}
}

// mutable returns the columns Update writes. id, email uniqueness and version are
// handled by the caller.
func (r *accountRow) mutable() map[string]any {
	return map[string]any{
		"email":                   r.Email,
		"name":                    r.Name,
		"role":                    r.Role,
		"password_hash":           r.PasswordHash,
		"password_history":        r.PasswordHistory,
		"status":                  r.Status,
		"status_reason":           r.StatusReason,
		"status_at":               r.StatusAt,
		"failed_attempts":         r.FailedAttempts,
		"verification_token":      r.VerificationToken,
		"verification_expiry":     r.VerificationExpiry,
		"two_factor":              r.TwoFactor,
		"totp_secret":             r.TOTPSecret,
		"totp_qr_url":             r.TOTPQRURL,
		"backup_codes":            r.BackupCodes,
		"last_login_at":           r.LastLoginAt,
		"last_login_ip":           r.LastLoginIP,
		"last_password_change_at": r.LastPasswordChangeAt,
		"updated_at":              r.UpdatedAt,
	}
}

func toRow(a *account.Account) (accountRow, error) {
	row := accountRow{
		ID:                   a.ID,
		Email:                account.NormalizeEmail(a.Email),
		Name:                 a.Name,
		Role:                 string(a.Role),
		PasswordHash:         a.PasswordHash,
		PasswordHistory:      nonNil(a.PasswordHistory),
		BackupCodes:          []string{},
		LastLoginAt:          a.LastLoginAt,
		LastLoginIP:          a.LastLoginIP,
		LastPasswordChangeAt: a.LastPasswordChangeAt,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
		Version:              int64(a.Version),
	}

	if a.Status == nil {
		return accountRow{}, account.ErrUnknownStatus
	}
	row.Status = a.Status.Kind().String()
	switch s := a.Status.(type) {
	case account.Unverified:
		row.VerificationToken = s.EmailVerificationToken
		row.VerificationExpiry = timePtr(s.TokenExpiry)
	case account.Active:
	case account.Locked:
		row.StatusReason = s.Reason
		row.StatusAt = timePtr(s.LockedAt)
		row.FailedAttempts = int32(s.FailedAttempts)
	case account.Suspended:
		row.StatusReason = s.Reason
		row.StatusAt = timePtr(s.SuspendedAt)
	case account.Deleted:
		row.StatusAt = timePtr(s.DeletedAt)
	default:
		return accountRow{}, account.ErrUnknownStatus
	}

	switch tf := a.TwoFactor.(type) {
	case account.TwoFactorDisabled, nil:
		row.TwoFactor = "disabled"
	case account.TwoFactorPending:
		row.TwoFactor = "pending"
		row.TOTPSecret = tf.Secret
		row.TOTPQRURL = tf.QRCodeURL
	case account.TwoFactorEnabled:
		row.TwoFactor = "enabled"
		row.TOTPSecret = tf.Secret
		row.BackupCodes = nonNil(tf.BackupCodes)
	default:
		return accountRow{}, account.ErrUnknownTwoFactor
	}

	return row, nil
}

func (r *accountRow) toAccount() (*account.Account, error) {
	kind, err := account.ParseStatusKind(r.Status)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", r.ID, err)
	}

	a := &account.Account{
		ID:                   r.ID,
		Email:                r.Email,
		Name:                 r.Name,
		Role:                 account.Role(r.Role),
		PasswordHash:         r.PasswordHash,
		PasswordHistory:      r.PasswordHistory,
		LastLoginAt:          r.LastLoginAt,
		LastLoginIP:          r.LastLoginIP,
		LastPasswordChangeAt: r.LastPasswordChangeAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		Version:              uint64(r.Version),
	}

	switch kind {
	case account.KindUnverified:
		a.Status = account.Unverified{
			EmailVerificationToken: r.VerificationToken,
			TokenExpiry:            timeOrZero(r.VerificationExpiry),
		}
	case account.KindActive:
		a.Status = account.Active{}
	case account.KindLocked:
		a.Status = account.Locked{
			Reason:         r.StatusReason,
			LockedAt:       timeOrZero(r.StatusAt),
			FailedAttempts: int(r.FailedAttempts),
		}
	case account.KindSuspended:
		a.Status = account.Suspended{
			Reason:      r.StatusReason,
			SuspendedAt: timeOrZero(r.StatusAt),
		}
	case account.KindDeleted:
		a.Status = account.Deleted{DeletedAt: timeOrZero(r.StatusAt)}
	}

	switch r.TwoFactor {
	case "disabled", "":
		a.TwoFactor = account.TwoFactorDisabled{}
	case "pending":
		a.TwoFactor = account.TwoFactorPending{Secret: r.TOTPSecret, QRCodeURL: r.TOTPQRURL}
	case "enabled":
		a.TwoFactor = account.TwoFactorEnabled{Secret: r.TOTPSecret, BackupCodes: nonNil(r.BackupCodes)}
	default:
		return nil, fmt.Errorf("account %s: %w", r.ID, account.ErrUnknownTwoFactor)
	}

	return a, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	out := t.UTC()
	return &out
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
