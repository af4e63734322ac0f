package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gamma-omg/expense-go/internal/pkg/middleware"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/token"
)

const DefaultCookieName = "session"

type tokenIssuer interface {
	Issue(claims token.SessionClaims) (string, error)
	Validate(token string) (token.SessionClaims, error)
	TTL() time.Duration
}

// Revoker remembers sessions that were logged out before their token expired
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type Config struct {
	CookieName string
	Secure     bool
}

// Manager keeps the signed in user in an HttpOnly cookie holding a signed
// session token
type Manager struct {
	cfg     Config
	tokens  tokenIssuer
	revoker Revoker
}

func NewManager(cfg Config, tokens tokenIssuer, revoker Revoker) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if revoker == nil {
		revoker = NopRevoker{}
	}

	return &Manager{cfg: cfg, tokens: tokens, revoker: revoker}
}

// Start issues a session token for claims and sets it as a cookie
func (m *Manager) Start(w http.ResponseWriter, claims token.SessionClaims) error {
	tk, err := m.tokens.Issue(claims)
	if err != nil {
		return fmt.Errorf("issue session token: %w", err)
	}

	http.SetCookie(w, m.cookie(tk, int(m.tokens.TTL().Seconds())))
	return nil
}

// Load returns the claims of the session carried by r. The token is read
// from the session cookie or, failing that, from a bearer Authorization header.
// Every failure wraps middleware.ErrUnauthenticated except revocation store errors.
func (m *Manager) Load(r *http.Request) (token.SessionClaims, error) {
	raw := m.rawToken(r)
	if raw == "" {
		return token.SessionClaims{}, fmt.Errorf("%w: no session", middleware.ErrUnauthenticated)
	}

	claims, err := m.tokens.Validate(raw)
	if err != nil {
		return token.SessionClaims{}, fmt.Errorf("%w: %v", middleware.ErrUnauthenticated, err)
	}

	revoked, err := m.revoker.IsRevoked(r.Context(), claims.SessionID)
	if err != nil {
		return token.SessionClaims{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return token.SessionClaims{}, fmt.Errorf("%w: session revoked", middleware.ErrUnauthenticated)
	}

	return claims, nil
}

// Destroy revokes the current session, if any, and clears the cookie.
// It returns the claims of the destroyed session.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) (token.SessionClaims, error) {
	http.SetCookie(w, m.cookie("", -1))

	claims, err := m.Load(r)
	if err != nil {
		if errors.Is(err, middleware.ErrUnauthenticated) {
			return token.SessionClaims{}, nil
		}
		return token.SessionClaims{}, err
	}

	if err := m.revoker.Revoke(ctx, claims.SessionID, claims.ExpiresAt); err != nil {
		return claims, fmt.Errorf("revoke session: %w", err)
	}

	return claims, nil
}

func (m *Manager) rawToken(r *http.Request) string {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	auth := r.Header.Get("Authorization")
	if tk, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(tk)
	}

	return ""
}

func (m *Manager) cookie(val string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    val,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
