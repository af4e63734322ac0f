package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

var (
	ErrProviderConflict = errors.New("provider already exists")
	ErrProviderNotFound = errors.New("provider not found")
	ErrAuthFailed       = errors.New("auth failed")
)

const (
	keyState    = "state"
	keyNonce    = "nonce"
	keyProvider = "provider"
)

// Flow selects between signing in and signing up at the provider
type Flow int

const (
	FlowLogin Flow = iota
	FlowRegister
)

type User struct {
	Nonce         string
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	IDToken       string
}

func (u *User) VerifiedEmail() string {
	if u.EmailVerified {
		return u.Email
	}
	return ""
}

// Env keeps per-browser handshake values between the redirect and the callback
type Env interface {
	Save(key, val string) error
	Load(key string) (string, error)
	Delete(key string) error
}

type identityProvider interface {
	LoginURL(state, nonce string, flow Flow) (string, error)
	Exchange(ctx context.Context, code string) (User, error)
	LogoutURL(idToken string) (string, error)
}

type Authenticator struct {
	providers map[string]identityProvider
	mu        sync.RWMutex
}

func NewAuthenticator() *Authenticator {
	return &Authenticator{
		providers: make(map[string]identityProvider),
	}
}

func (a *Authenticator) Use(name string, p identityProvider) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.providers[name]; ok {
		return ErrProviderConflict
	}

	a.providers[name] = p
	return nil
}

// LoginURL stores a fresh state and nonce in env and returns the provider redirect
func (a *Authenticator) LoginURL(env Env, provider string, flow Flow) (string, error) {
	p, err := a.getProvider(provider)
	if err != nil {
		return "", fmt.Errorf("get provider: %w", err)
	}

	state := randString(32)
	nonce := randString(32)

	err = errors.Join(
		env.Save(keyState, state),
		env.Save(keyNonce, nonce),
		env.Save(keyProvider, provider),
	)
	if err != nil {
		return "", fmt.Errorf("save handshake: %w", err)
	}

	url, err := p.LoginURL(state, nonce, flow)
	if err != nil {
		return "", fmt.Errorf("get login url: %w", err)
	}

	return url, nil
}

// Provider returns the provider the pending handshake was started with
func (a *Authenticator) Provider(env Env) (string, error) {
	name, err := env.Load(keyProvider)
	if err != nil {
		return "", fmt.Errorf("%w: no pending login: %v", ErrAuthFailed, err)
	}
	return name, nil
}

// Exchange checks the returned state, trades the code for the user and
// verifies the ID token nonce. The handshake values are cleared either way.
func (a *Authenticator) Exchange(ctx context.Context, env Env, provider, code, state string) (User, error) {
	p, err := a.getProvider(provider)
	if err != nil {
		return User{}, fmt.Errorf("get provider: %w", err)
	}

	saved, err := env.Load(keyState)
	if err != nil {
		return User{}, fmt.Errorf("%w: load state: %v", ErrAuthFailed, err)
	}

	savedNonce, err := env.Load(keyNonce)
	if err != nil {
		return User{}, fmt.Errorf("%w: load nonce: %v", ErrAuthFailed, err)
	}

	defer a.Forget(env)

	if saved == "" || saved != state {
		return User{}, ErrAuthFailed
	}

	usr, err := p.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			if rerr.Response != nil {
				if rerr.Response.StatusCode == http.StatusBadRequest || rerr.Response.StatusCode == http.StatusUnauthorized {
					return User{}, ErrAuthFailed
				}
			}
		}

		return User{}, fmt.Errorf("exchange: %w", err)
	}

	if usr.Nonce == "" || usr.Nonce != savedNonce {
		return User{}, ErrAuthFailed
	}

	return usr, nil
}

// Forget drops any pending handshake values
func (a *Authenticator) Forget(env Env) {
	_ = env.Delete(keyState)
	_ = env.Delete(keyNonce)
	_ = env.Delete(keyProvider)
}

func (a *Authenticator) LogoutURL(provider, idToken string) (string, error) {
	p, err := a.getProvider(provider)
	if err != nil {
		return "", fmt.Errorf("get provider: %w", err)
	}

	url, err := p.LogoutURL(idToken)
	if err != nil {
		return "", fmt.Errorf("get logout url: %w", err)
	}

	return url, nil
}

func (a *Authenticator) getProvider(name string) (identityProvider, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, ok := a.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}

	return p, nil
}

func randString(size int) string {
	b := make([]byte, size)

	// rand.Read never returns an error
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
