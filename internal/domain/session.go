package domain

import "time"

// Session is the decoded, validated view of a session token.
type Session struct {
	ID            string
	Email         string
	Role          Role
	TenantContext string
	APIToken      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}
