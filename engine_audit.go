package authcore

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventAccountLocked       = "account_locked"
	auditEventLockReleased        = "account_lock_released"
	auditEventTwoFactorRequired   = "two_factor_required"
	auditEventTwoFactorFailure    = "two_factor_failure"
	auditEventTwoFactorSetup      = "two_factor_setup_requested"
	auditEventTwoFactorEnabled    = "two_factor_enabled"
	auditEventTwoFactorDisabled   = "two_factor_disabled"
	auditEventBackupCodesIssued   = "backup_codes_generated"
	auditEventBackupCodeUsed      = "backup_code_used"
	auditEventPasswordChange      = "password_change"
	auditEventPasswordInvalidOld  = "password_change_invalid_old"
	auditEventPasswordReuse       = "password_change_reuse_attempt"
	auditEventPasswordFailure     = "password_change_failure"
	auditEventSessionRevoked      = "session_revoked"
	auditEventAccountStatusChange = "account_status_change"
)

// AuditErrorCode is the stable error label written to AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidPassword    AuditErrorCode = "invalid_password"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrTwoFactorRequired  AuditErrorCode = "two_factor_required"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrWeakPassword       AuditErrorCode = "weak_password"
	auditErrPasswordReused     AuditErrorCode = "password_reused"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountSuspended   AuditErrorCode = "account_suspended"
	auditErrAccountDeleted     AuditErrorCode = "account_deleted"
	auditErrEmailNotVerified   AuditErrorCode = "email_not_verified"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTwoFactorState     AuditErrorCode = "two_factor_state"
	auditErrConflict           AuditErrorCode = "conflict"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidPassword):
		return auditErrInvalidPassword
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrTwoFactorRequired):
		return auditErrTwoFactorRequired
	case errors.Is(err, ErrTwoFactorRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrWeakPassword):
		return auditErrWeakPassword
	case errors.Is(err, ErrPasswordReused):
		return auditErrPasswordReused
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountSuspended):
		return auditErrAccountSuspended
	case errors.Is(err, ErrAccountDeleted):
		return auditErrAccountDeleted
	case errors.Is(err, ErrEmailNotVerified):
		return auditErrEmailNotVerified
	case errors.Is(err, ErrEmailVerificationInvalid),
		errors.Is(err, ErrEmailVerificationExpired):
		return auditErrInvalidToken
	case errors.Is(err, ErrTwoFactorAlreadyEnabled),
		errors.Is(err, ErrTwoFactorNotPending),
		errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorState
	case errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrInvalidTransition):
		return auditErrConflict
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionExpired):
		return auditErrSessionNotFound
	case errors.Is(err, ErrDatabase),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
