package model

import "time"

// RoleAdmin is the only role the salon admin area knows about.
const RoleAdmin = "ADMIN"

// Session is the resolved admin login carried on a request context.  A
// request without a Session is LoggedOut; there is no partial state.
type Session struct {
	ID        string    // jti of the issued token
	Role      string    // always RoleAdmin today
	Token     string    // signed token, only populated right after login
	ExpiresAt time.Time // UTC
}

// Authenticated reports whether the session is usable at the given instant.
func (s *Session) Authenticated(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// AdminSession mirrors a row of the `admin_sessions` table.  Only the SHA-256
// hash of the token id is stored.
type AdminSession struct {
	ID        string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
