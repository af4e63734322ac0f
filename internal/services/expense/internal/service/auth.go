package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gamma-omg/expense-go/internal/pkg/middleware"
	"github.com/gamma-omg/expense-go/internal/pkg/serr"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/model"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/oauth"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/token"
	"github.com/google/uuid"
)

// authenticator defines the interface for OAuth authentication flow management
type authenticator interface {
	LoginURL(env oauth.Env, provider string, flow oauth.Flow) (string, error)
	Provider(env oauth.Env) (string, error)
	Exchange(ctx context.Context, env oauth.Env, provider, code, state string) (oauth.User, error)
	Forget(env oauth.Env)
	LogoutURL(provider, idToken string) (string, error)
}

type sessionManager interface {
	Start(w http.ResponseWriter, claims token.SessionClaims) error
	Load(r *http.Request) (token.SessionClaims, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) (token.SessionClaims, error)
}

type userSyncer interface {
	Sync(ctx context.Context, usr model.User) error
}

// Auth handles the login handshake and the session that follows it
type Auth struct {
	auth     authenticator
	sessions sessionManager
	users    userSyncer
	provider string
	appURL   string
}

type AuthOption func(*Auth) *Auth

func WithAuthenticator(a authenticator) AuthOption {
	return func(s *Auth) *Auth {
		s.auth = a
		return s
	}
}

func WithSessions(m sessionManager) AuthOption {
	return func(s *Auth) *Auth {
		s.sessions = m
		return s
	}
}

func WithUsers(u userSyncer) AuthOption {
	return func(s *Auth) *Auth {
		s.users = u
		return s
	}
}

// WithDefaultProvider names the provider used when a request does not pick one
func WithDefaultProvider(name string) AuthOption {
	return func(s *Auth) *Auth {
		s.provider = name
		return s
	}
}

// WithAppURL sets where the browser lands after login and logout
func WithAppURL(url string) AuthOption {
	return func(s *Auth) *Auth {
		s.appURL = url
		return s
	}
}

func NewAuth(opts ...AuthOption) *Auth {
	s := &Auth{appURL: "/"}
	for _, opt := range opts {
		s = opt(s)
	}

	if s.auth == nil {
		panic("oauth authenticator is required")
	}

	if s.sessions == nil {
		panic("session manager is required")
	}

	if s.users == nil {
		panic("user syncer is required")
	}

	if s.provider == "" {
		panic("default provider is required")
	}

	return s
}

type LoginRequest struct {
	Provider string
	Register bool
}

// LoginURL starts a handshake and returns the provider's sign in (or sign up) page
func (s *Auth) LoginURL(env oauth.Env, r LoginRequest) (string, error) {
	provider := r.Provider
	if provider == "" {
		provider = s.provider
	}

	flow := oauth.FlowLogin
	if r.Register {
		flow = oauth.FlowRegister
	}

	url, err := s.auth.LoginURL(env, provider, flow)
	if err != nil {
		if errors.Is(err, oauth.ErrProviderNotFound) {
			se := serr.NewServiceError(err, http.StatusNotFound, "OAuth provider not found")
			se.Env["provider"] = provider
			return "", se
		}

		return "", fmt.Errorf("login url: %w", err)
	}

	return url, nil
}

type CallbackRequest struct {
	Code  string
	State string
}

// Callback completes the handshake, mirrors the user and starts a session.
// It returns the URL the browser should be sent to.
func (s *Auth) Callback(ctx context.Context, env oauth.Env, w http.ResponseWriter, r CallbackRequest) (string, error) {
	provider, err := s.auth.Provider(env)
	if err != nil {
		return "", authFailed(err, "")
	}

	usr, err := s.auth.Exchange(ctx, env, provider, r.Code, r.State)
	if err != nil {
		if errors.Is(err, oauth.ErrAuthFailed) || errors.Is(err, oauth.ErrProviderNotFound) {
			return "", authFailed(err, provider)
		}

		return "", fmt.Errorf("exchange: %w", err)
	}

	if usr.ID == "" {
		return "", authFailed(errors.New("identity has no subject"), provider)
	}

	mu := model.User{
		ID:      usr.ID,
		Name:    usr.Name,
		Email:   usr.VerifiedEmail(),
		Picture: usr.Picture,
	}
	if err := s.users.Sync(ctx, mu); err != nil {
		return "", fmt.Errorf("sync user: %w", err)
	}

	err = s.sessions.Start(w, token.SessionClaims{
		SessionID: uuid.NewString(),
		UserID:    mu.ID,
		Provider:  provider,
		Name:      mu.Name,
		Email:     mu.Email,
		Picture:   mu.Picture,
		IDToken:   usr.IDToken,
	})
	if err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}

	slog.Info("user signed in", "user_id", mu.ID, "provider", provider)
	return s.appURL, nil
}

// Logout ends the current session and returns the provider's logout page.
// Without a session it still clears cookies and goes back to the app.
func (s *Auth) Logout(ctx context.Context, env oauth.Env, w http.ResponseWriter, r *http.Request) (string, error) {
	s.auth.Forget(env)

	claims, err := s.sessions.Destroy(ctx, w, r)
	if err != nil {
		slog.Error("failed to revoke session", "error", err, "user_id", claims.UserID)
	}

	if claims.UserID == "" {
		return s.appURL, nil
	}

	provider := claims.Provider
	if provider == "" {
		provider = s.provider
	}

	url, err := s.auth.LogoutURL(provider, claims.IDToken)
	if err != nil {
		slog.Warn("no provider logout url", "error", err, "provider", provider)
		return s.appURL, nil
	}

	return url, nil
}

// Resolve returns the caller behind r. The user row is refreshed on the way,
// failures there are only logged.
func (s *Auth) Resolve(r *http.Request) (middleware.Caller, error) {
	claims, err := s.sessions.Load(r)
	if err != nil {
		return middleware.Caller{}, err
	}

	c := middleware.Caller{
		ID:      claims.UserID,
		Name:    claims.Name,
		Email:   claims.Email,
		Picture: claims.Picture,
	}

	if err := s.users.Sync(r.Context(), model.User(c)); err != nil {
		slog.Warn("failed to sync user", "error", err, "user_id", c.ID)
	}

	return c, nil
}

func authFailed(err error, provider string) error {
	se := serr.NewServiceError(err, http.StatusUnauthorized, "Authentication failed")
	if provider != "" {
		se.Env["provider"] = provider
	}
	return se
}
