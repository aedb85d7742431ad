package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpSecretBytes = 20

type totpManager struct {
	config    TwoFactorConfig
	digits    otp.Digits
	algorithm otp.Algorithm
}

func newTOTPManager(cfg TwoFactorConfig) *totpManager {
	m := &totpManager{config: cfg, digits: otp.DigitsSix, algorithm: otp.AlgorithmSHA1}
	if cfg.Digits == 8 {
		m.digits = otp.DigitsEight
	}
	switch strings.ToUpper(cfg.Algorithm) {
	case "SHA256":
		m.algorithm = otp.AlgorithmSHA256
	case "SHA512":
		m.algorithm = otp.AlgorithmSHA512
	}
	return m
}

// GenerateSecret returns a fresh base32 secret and its otpauth provisioning URI.
func (m *totpManager) GenerateSecret(accountName string) (string, string, error) {
	if m == nil {
		return "", "", ErrEngineNotReady
	}
	if strings.TrimSpace(accountName) == "" {
		return "", "", errors.New("totp account name required")
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: accountName,
		Period:      m.config.Period,
		SecretSize:  totpSecretBytes,
		Digits:      m.digits,
		Algorithm:   m.algorithm,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify reports whether code is valid for secret at the given instant, allowing
// Skew periods of drift either way.
func (m *totpManager) Verify(secret, code string, at time.Time) bool {
	if m == nil || secret == "" {
		return false
	}
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != m.digits.Length() || !isNumericString(trimmed) {
		return false
	}
	ok, err := totp.ValidateCustom(trimmed, secret, at, m.validateOpts())
	return err == nil && ok
}

// Code returns the code for secret at the given instant.
func (m *totpManager) Code(secret string, at time.Time) (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}
	return totp.GenerateCodeCustom(secret, at, m.validateOpts())
}

func (m *totpManager) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    m.config.Period,
		Skew:      m.config.Skew,
		Digits:    m.digits,
		Algorithm: m.algorithm,
	}
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
