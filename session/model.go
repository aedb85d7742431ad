package session

import "time"

// Session is a login session bound to one account.
//
// RefreshToken is only populated on the value returned by Manager.Issue. Stored
// sessions carry RefreshHash instead.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	RefreshHash  [32]byte

	IPAddress string
	UserAgent string

	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	RememberMe     bool
}

// ActiveAt reports whether the session has not expired at now.
func (s *Session) ActiveAt(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

// Info is the listing view of a session. It never contains token material.
type Info struct {
	ID             string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	RememberMe     bool
	Current        bool
}

func (s *Session) info(currentID string) Info {
	return Info{
		ID:             s.ID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		RememberMe:     s.RememberMe,
		Current:        currentID != "" && s.ID == currentID,
	}
}
