package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Report struct {
	SigningAlgorithm        string
	AccessTokensEnabled     bool
	AccessTTL               time.Duration
	SessionTTL              time.Duration
	RememberMeTTL           time.Duration
	Argon2                  PasswordReport
	LegacyBcryptAccepted    bool
	LockoutThreshold        int
	LockoutDuration         time.Duration
	ManualUnlockOnly        bool
	FailureCountingDurable  bool
	TOTPAlgorithm           string
	TOTPSkewSteps           uint
	BackupCodeCount         int
	PasswordReuseBlocked    bool
	SessionsRevokedOnChange bool
	LoginTimingEqualized    bool
	AuditActive             bool
}

type ReportInput struct {
	JWTEnabled             bool
	SigningAlgorithm       string
	AccessTTL              time.Duration
	SessionTTL             time.Duration
	RememberMeTTL          time.Duration
	Password               PasswordReport
	AcceptBcrypt           bool
	MaxFailedAttempts      int
	LockoutDuration        time.Duration
	HasFailureCounter      bool
	TOTPAlgorithm          string
	TOTPSkew               uint
	BackupCodeCount        int
	ReuseWindow            int
	RevokeOnPasswordChange bool
	EqualizeLoginTiming    bool
	AuditEnabled           bool
}

// BuildReport derives the posture flags from raw configuration. Signing details
// are only reported when access tokens are minted.
func BuildReport(input ReportInput) Report {
	report := Report{
		AccessTokensEnabled:     input.JWTEnabled,
		SessionTTL:              input.SessionTTL,
		RememberMeTTL:           input.RememberMeTTL,
		Argon2:                  input.Password,
		LegacyBcryptAccepted:    input.AcceptBcrypt,
		LockoutThreshold:        input.MaxFailedAttempts,
		LockoutDuration:         input.LockoutDuration,
		ManualUnlockOnly:        input.MaxFailedAttempts > 0 && input.LockoutDuration == 0,
		FailureCountingDurable:  input.HasFailureCounter,
		TOTPAlgorithm:           input.TOTPAlgorithm,
		TOTPSkewSteps:           input.TOTPSkew,
		BackupCodeCount:         input.BackupCodeCount,
		PasswordReuseBlocked:    input.ReuseWindow > 0,
		SessionsRevokedOnChange: input.RevokeOnPasswordChange,
		LoginTimingEqualized:    input.EqualizeLoginTiming,
		AuditActive:             input.AuditEnabled,
	}
	if input.JWTEnabled {
		report.SigningAlgorithm = input.SigningAlgorithm
		report.AccessTTL = input.AccessTTL
	}
	return report
}
