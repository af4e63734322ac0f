package provider

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gamma-omg/expense-go/internal/services/expense/internal/oauth"
	"golang.org/x/oauth2"
)

const (
	scopeEmail   string = "email"
	scopeProfile string = "profile"
)

var ErrNoIDToken = errors.New("token response has no id_token")

// OIDC implements the identityProvider interface for any OpenID Connect issuer
type OIDC struct {
	name           string
	cfg            *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	endSession     string
	logoutRedirect string
}

// OIDCConfig holds the configuration for an OpenID Connect provider
type OIDCConfig struct {
	Name              string
	IssuerURL         string
	ClientID          string
	ClientSecret      string
	RedirectURL       string
	LogoutRedirectURL string
	Scopes            []string
}

type userClaims struct {
	Sub        string `json:"sub,omitempty"`
	Email      string `json:"email,omitempty"`
	Verified   bool   `json:"email_verified,omitempty"`
	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Picture    string `json:"picture,omitempty"`
}

type discoveryClaims struct {
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// NewOIDC discovers the issuer configuration and creates the provider
func NewOIDC(ctx context.Context, c OIDCConfig) (*OIDC, error) {
	p, err := oidc.NewProvider(ctx, c.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("new oidc provider: %w", err)
	}

	var disc discoveryClaims
	if err := p.Claims(&disc); err != nil {
		return nil, fmt.Errorf("read discovery document: %w", err)
	}

	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, scopeProfile, scopeEmail}
	}

	return &OIDC{
		name: c.Name,
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       scopes,
			Endpoint:     p.Endpoint(),
		},
		verifier:       p.Verifier(&oidc.Config{ClientID: c.ClientID}),
		endSession:     disc.EndSessionEndpoint,
		logoutRedirect: c.LogoutRedirectURL,
	}, nil
}

// LoginURL generates the authorization URL. The register flow asks the
// provider to show its sign-up screen.
func (o *OIDC) LoginURL(state, nonce string, flow oauth.Flow) (string, error) {
	opts := []oauth2.AuthCodeOption{oidc.Nonce(nonce)}
	if flow == oauth.FlowRegister {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "create"))
	}

	return o.cfg.AuthCodeURL(state, opts...), nil
}

// Exchange exchanges the authorization code for a verified OAuth user
func (o *OIDC) Exchange(ctx context.Context, code string) (oauth.User, error) {
	tok, err := o.cfg.Exchange(ctx, code)
	if err != nil {
		return oauth.User{}, err
	}

	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return oauth.User{}, ErrNoIDToken
	}

	idTok, err := o.verifier.Verify(ctx, raw)
	if err != nil {
		return oauth.User{}, fmt.Errorf("verify id token: %w", err)
	}

	var usr userClaims
	if err := idTok.Claims(&usr); err != nil {
		return oauth.User{}, fmt.Errorf("read claims: %w", err)
	}

	return oauth.User{
		Nonce:         idTok.Nonce,
		ID:            usr.Sub,
		Email:         usr.Email,
		EmailVerified: usr.Verified,
		Picture:       usr.Picture,
		Name:          nameOrDefault(fullName(usr), o.defaultName(usr)),
		IDToken:       raw,
	}, nil
}

// LogoutURL points at the issuer's end-session endpoint when it has one,
// otherwise straight back to the application
func (o *OIDC) LogoutURL(idToken string) (string, error) {
	if o.endSession == "" {
		return o.logoutRedirect, nil
	}

	u, err := url.Parse(o.endSession)
	if err != nil {
		return "", fmt.Errorf("parse end session endpoint: %w", err)
	}

	q := u.Query()
	q.Set("client_id", o.cfg.ClientID)
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	if o.logoutRedirect != "" {
		q.Set("post_logout_redirect_uri", o.logoutRedirect)
		// some issuers (Kinde) use the older name
		q.Set("redirect", o.logoutRedirect)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func fullName(usr userClaims) string {
	full := strings.TrimSpace(usr.GivenName + " " + usr.FamilyName)
	if full != "" {
		return full
	}
	return usr.Name
}

// nameOrDefault returns the user's name if it's not empty; otherwise, it returns the default name
func nameOrDefault(name, def string) string {
	if name != "" {
		return name
	}
	return def
}

// defaultName generates a default name based on the user's subject identifier
func (o *OIDC) defaultName(usr userClaims) string {
	sum := sha1.Sum([]byte(usr.Sub))
	prefix := o.name
	if prefix == "" {
		prefix = "user"
	}
	return fmt.Sprintf("%s_%x", prefix, sum[:4])
}
