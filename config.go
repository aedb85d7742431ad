package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/password"
)

// Config is the full engine configuration. Obtain a populated value with
// DefaultConfig and adjust it before passing it to Builder.WithConfig.
type Config struct {
	Lockout   LockoutConfig
	TwoFactor TwoFactorConfig
	Password  PasswordConfig
	Session   SessionConfig
	JWT       JWTConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Security  SecurityConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig controls automatic account locking after repeated password failures.
type LockoutConfig struct {
	MaxFailedAttempts int
	// Duration is measured from the moment of locking. Zero keeps the account
	// locked until UnlockAccount is called.
	Duration time.Duration
	// FailureWindow bounds how long sub-threshold failures are remembered.
	FailureWindow time.Duration
	Reason        string
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls TOTP parameters and backup code generation.
type TwoFactorConfig struct {
	Issuer           string
	Digits           int
	Period           uint
	Skew             uint
	Algorithm        string // "SHA1" (default), "SHA256", "SHA512"
	BackupCodeCount  int
	BackupCodeLength int
	// MaxAttempts wrong codes are accepted per account within AttemptCooldown,
	// counted from the first one.
	MaxAttempts     int
	AttemptCooldown time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters, the strength policy and history rules.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MaxPasswordBytes int
	Policy           password.Policy

	HistorySize int
	ReuseWindow int
	// AcceptBcrypt lets legacy bcrypt digests verify. New hashes are always Argon2id.
	AcceptBcrypt bool
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	TTL                    time.Duration
	RememberMeTTL          time.Duration
	RedisPrefix            string
	RevokeOnPasswordChange bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig enables short-lived access tokens alongside the session. Tokens are
// only minted when Enabled is true.
type JWTConfig struct {
	Enabled       bool
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
AUDIT CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

type SecurityConfig struct {
	// EqualizeLoginTiming verifies against a dummy digest when the email is unknown.
	EqualizeLoginTiming bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the recommended baseline configuration.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			Duration:          30 * time.Minute,
			FailureWindow:     30 * time.Minute,
			Reason:            DefaultLockReason,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:           "authcore",
			Digits:           6,
			Period:           30,
			Skew:             2,
			Algorithm:        "SHA1",
			BackupCodeCount:  8,
			BackupCodeLength: 10,
			MaxAttempts:      5,
			AttemptCooldown:  time.Minute,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: password.DefaultMaxPasswordBytes,
			Policy:           password.DefaultPolicy(),
			HistorySize:      5,
			ReuseWindow:      3,
			AcceptBcrypt:     true,
		},
		Session: SessionConfig{
			TTL:                    24 * time.Hour,
			RememberMeTTL:          30 * 24 * time.Hour,
			RedisPrefix:            "ac",
			RevokeOnPasswordChange: true,
		},
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Security: SecurityConfig{
			EqualizeLoginTiming: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Lockout
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout MaxFailedAttempts must be > 0")
	}
	if c.Lockout.Duration < 0 {
		return errors.New("Lockout Duration must be >= 0")
	}
	if c.Lockout.FailureWindow <= 0 {
		return errors.New("Lockout FailureWindow must be > 0")
	}

	// Two-factor
	if strings.TrimSpace(c.TwoFactor.Issuer) == "" {
		return errors.New("TwoFactor Issuer must not be empty")
	}
	if c.TwoFactor.Digits != 6 && c.TwoFactor.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if c.TwoFactor.Period == 0 {
		return errors.New("TwoFactor Period must be > 0")
	}
	if c.TwoFactor.Skew > 10 {
		return errors.New("TwoFactor Skew must be <= 10")
	}
	switch strings.ToUpper(c.TwoFactor.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("TwoFactor Algorithm must be SHA1, SHA256 or SHA512")
	}
	if c.TwoFactor.BackupCodeCount <= 0 || c.TwoFactor.BackupCodeCount > 32 {
		return errors.New("TwoFactor BackupCodeCount must be between 1 and 32")
	}
	if c.TwoFactor.BackupCodeLength < 8 || c.TwoFactor.BackupCodeLength > 32 {
		return errors.New("TwoFactor BackupCodeLength must be between 8 and 32")
	}
	if c.TwoFactor.MaxAttempts <= 0 {
		return errors.New("TwoFactor MaxAttempts must be > 0")
	}
	if c.TwoFactor.AttemptCooldown <= 0 {
		return errors.New("TwoFactor AttemptCooldown must be > 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}
	if c.Password.Policy.MinLength <= 0 {
		return errors.New("Password Policy MinLength must be > 0")
	}
	if c.Password.Policy.MaxLength > 0 && c.Password.Policy.MaxLength < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxLength must be >= MinLength")
	}
	if c.Password.HistorySize < 0 {
		return errors.New("Password HistorySize must be >= 0")
	}
	if c.Password.ReuseWindow < 0 || c.Password.ReuseWindow > c.Password.HistorySize {
		return errors.New("Password ReuseWindow must be between 0 and HistorySize")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RememberMeTTL < c.Session.TTL {
		return errors.New("Session RememberMeTTL must be >= TTL")
	}
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// JWT
	if c.JWT.Enabled {
		if c.JWT.AccessTTL <= 0 {
			return errors.New("JWT AccessTTL must be > 0")
		}
		if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
			return errors.New("unsupported JWT signing method")
		}
		if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
