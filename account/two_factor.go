package account

import "errors"

// ErrUnknownTwoFactor is returned when a second-factor value is not one of the declared variants.
var ErrUnknownTwoFactor = errors.New("unknown two-factor status")

// TwoFactor is the second-factor enrollment state. The set of variants is closed.
type TwoFactor interface {
	isTwoFactor()
}

// TwoFactorDisabled means no second factor is configured.
type TwoFactorDisabled struct{}

// TwoFactorPending holds a secret issued by setup that has not been confirmed yet.
type TwoFactorPending struct {
	Secret    string
	QRCodeURL string
}

// TwoFactorEnabled holds the confirmed secret and the remaining backup codes.
// BackupCodes are hex SHA-256 digests; plaintext codes are never stored.
type TwoFactorEnabled struct {
	Secret      string
	BackupCodes []string
}

func (TwoFactorDisabled) isTwoFactor() {}
func (TwoFactorPending) isTwoFactor()  {}
func (TwoFactorEnabled) isTwoFactor()  {}

// TwoFactorKind returns a stable name for the variant, used by storage adapters.
func TwoFactorKind(tf TwoFactor) string {
	switch tf.(type) {
	case TwoFactorPending:
		return "pending"
	case TwoFactorEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}
