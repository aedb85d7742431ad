package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/segmentio/ksuid"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultRememberMeTTL = 30 * 24 * time.Hour
)

// Config controls session lifetimes.
type Config struct {
	TTL           time.Duration
	RememberMeTTL time.Duration
}

// IssueRequest describes a session to create after a successful login.
type IssueRequest struct {
	UserID     string
	IPAddress  string
	UserAgent  string
	RememberMe bool
}

// Manager implements session issue, listing, and revocation over a Repository.
type Manager struct {
	repo          Repository
	ttl           time.Duration
	rememberMeTTL time.Duration

	now      func() time.Time
	newID    func() string
	newToken func() (string, [32]byte, error)
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides the session ID generator (KSUID by default).
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithTokenGenerator overrides the refresh token generator. The generator returns the
// token and the digest to persist.
func WithTokenGenerator(gen func() (string, [32]byte, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newToken = gen
		}
	}
}

// NewManager creates a Manager. Zero lifetimes fall back to DefaultTTL and DefaultRememberMeTTL.
func NewManager(repo Repository, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		repo:          repo,
		ttl:           cfg.TTL,
		rememberMeTTL: cfg.RememberMeTTL,
		now:           time.Now,
		newID:         func() string { return ksuid.New().String() },
		newToken:      internal.NewRefreshToken,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.rememberMeTTL <= 0 {
		m.rememberMeTTL = DefaultRememberMeTTL
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lifetime(rememberMe bool) time.Duration {
	if rememberMe {
		return m.rememberMeTTL
	}
	return m.ttl
}

// Issue creates and persists a new session. The returned value is the only place the
// plaintext refresh token appears.
func (m *Manager) Issue(ctx context.Context, req IssueRequest) (*Session, error) {
	if req.UserID == "" {
		return nil, errors.New("session user id required")
	}
	token, hash, err := m.newToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	now := m.now().UTC()
	ttl := m.lifetime(req.RememberMe)
	sess := &Session{
		ID:             m.newID(),
		UserID:         req.UserID,
		RefreshHash:    hash,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ttl),
		RememberMe:     req.RememberMe,
	}
	if err := m.repo.Save(ctx, sess, ttl); err != nil {
		return nil, err
	}

	sess.RefreshToken = token
	return sess, nil
}

// ListActive returns the user's unexpired sessions, most recently active first.
// Sessions with equal activity keep repository order.
// The session whose ID equals currentID is flagged Current.
func (m *Manager) ListActive(ctx context.Context, userID, currentID string) ([]Info, error) {
	stored, err := m.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := make([]Info, 0, len(stored))
	for _, s := range stored {
		if !s.ActiveAt(now) {
			continue
		}
		out = append(out, s.info(currentID))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// Touch records activity on an active session owned by userID.
func (m *Manager) Touch(ctx context.Context, userID, sessionID string) error {
	sess, err := m.owned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	now := m.now().UTC()
	if !sess.ActiveAt(now) {
		return ErrExpired
	}
	sess.LastActivityAt = now
	return m.repo.Save(ctx, sess, sess.ExpiresAt.Sub(now))
}

// Revoke deletes one session owned by userID.
func (m *Manager) Revoke(ctx context.Context, userID, sessionID string) error {
	if _, err := m.owned(ctx, userID, sessionID); err != nil {
		return err
	}
	return m.repo.Delete(ctx, userID, sessionID)
}

// RevokeAll deletes every session of userID except exceptID and returns how many
// sessions were removed.
func (m *Manager) RevokeAll(ctx context.Context, userID, exceptID string) (int, error) {
	stored, err := m.repo.FindByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range stored {
		if exceptID != "" && s.ID == exceptID {
			continue
		}
		if err := m.repo.Delete(ctx, userID, s.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) owned(ctx context.Context, userID, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	sess, err := m.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotFound
	}
	return sess, nil
}
