package token

import "time"

// SessionClaims is what a session cookie carries about the signed in user
type SessionClaims struct {
	SessionID string
	UserID    string
	Provider  string
	Name      string
	Email     string
	Picture   string
	IDToken   string
	ExpiresAt time.Time
}
