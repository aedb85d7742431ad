package authcore

import (
	"testing"
	"time"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *Config) {
		cfg.Lockout.Duration = 0
		cfg.JWT.Enabled = true
		cfg.JWT.SigningMethod = "hs256"
		cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	}))

	report := env.engine.SecurityReport()
	if !report.AccessTokensEnabled || report.SigningAlgorithm != "hs256" {
		t.Fatalf("expected hs256 access tokens in report, got %+v", report)
	}
	if !report.ManualUnlockOnly || report.LockoutThreshold != 5 {
		t.Fatalf("expected manual unlock lockout at 5 failures, got %+v", report)
	}
	if !report.FailureCountingDurable {
		t.Fatal("expected redis failure counter in report")
	}
	if report.SessionTTL != 24*time.Hour || report.Argon2.Memory != 8192 {
		t.Fatalf("unexpected session or argon2 settings %+v", report)
	}
	if !report.AuditActive || !report.PasswordReuseBlocked {
		t.Fatalf("expected audit and reuse blocking active, got %+v", report)
	}
}

func TestSecurityReportNilEngine(t *testing.T) {
	var e *Engine
	if report := e.SecurityReport(); report.AccessTokensEnabled || report.LockoutThreshold != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
}
