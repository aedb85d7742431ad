package authcore

import "github.com/MrEthical07/authcore/internal/security"

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = security.Report

// SecurityReport summarizes the effective configuration. The zero value is
// returned for a nil engine.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return security.BuildReport(security.ReportInput{
		JWTEnabled:       e.config.JWT.Enabled,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		SessionTTL:       e.config.Session.TTL,
		RememberMeTTL:    e.config.Session.RememberMeTTL,
		Password: security.PasswordReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		AcceptBcrypt:           e.config.Password.AcceptBcrypt,
		MaxFailedAttempts:      e.config.Lockout.MaxFailedAttempts,
		LockoutDuration:        e.config.Lockout.Duration,
		HasFailureCounter:      e.counter != nil,
		TOTPAlgorithm:          e.config.TwoFactor.Algorithm,
		TOTPSkew:               e.config.TwoFactor.Skew,
		BackupCodeCount:        e.config.TwoFactor.BackupCodeCount,
		ReuseWindow:            e.config.Password.ReuseWindow,
		RevokeOnPasswordChange: e.config.Session.RevokeOnPasswordChange,
		EqualizeLoginTiming:    e.config.Security.EqualizeLoginTiming,
		AuditEnabled:           e.audit != nil,
	})
}
