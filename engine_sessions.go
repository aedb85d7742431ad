package authcore

import (
	"context"
	"strconv"
)

// ListSessions returns the user's unexpired sessions, most recently active first.
// The session with currentSessionID is flagged Current. Listing never modifies a
// session and never exposes refresh tokens.
func (e *Engine) ListSessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, ErrAccountNotFound
	}
	infos, err := e.sessions.ListActive(ctx, userID, currentSessionID)
	if err != nil {
		return nil, mapSessionError(err)
	}
	return infos, nil
}

// TouchSession records activity on an active session.
func (e *Engine) TouchSession(ctx context.Context, userID, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return mapSessionError(e.sessions.Touch(ctx, userID, sessionID))
}

// Logout revokes one session owned by userID.
func (e *Engine) Logout(ctx context.Context, userID, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.sessions.Revoke(ctx, userID, sessionID); err != nil {
		return mapSessionError(err)
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
	return nil
}

// LogoutAll revokes every session of userID and returns how many were removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.revokeAllSessions(ctx, userID)
	if err != nil {
		return n, mapSessionError(err)
	}
	e.emitAudit(ctx, auditEventSessionRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"scope": "all", "count": strconv.Itoa(n)}
	})
	return n, nil
}

func (e *Engine) revokeAllSessions(ctx context.Context, userID string) (int, error) {
	n, err := e.sessions.RevokeAll(ctx, userID, "")
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	return n, err
}
