package types

import "time"

// User is the identity asserted by the SSO service for a browser session.
type User struct {
	ID    string `json:"id"`
	Login string `json:"login"` // forwarded upstream as X-Remote-User
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is the server-side record of an issued session cookie. Logout
// deletes the record, which invalidates the cookie before its JWT expiry.
type Session struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
