package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type JwtIssuer struct {
	secret secretProvider
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type JwtConfig struct {
	Secret secretProvider
	Issuer string
	TTL    time.Duration
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Provider string `json:"provider"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Picture  string `json:"picture,omitempty"`
	IDToken  string `json:"idt,omitempty"`
}

func NewJWTIssuer(cfg JwtConfig) *JwtIssuer {
	return &JwtIssuer{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

func (ti *JwtIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue signs claims with HS256. ExpiresAt is ignored and set from the issuer TTL.
func (ti *JwtIssuer) Issue(claims SessionClaims) (string, error) {
	now := ti.now()

	tk, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.SessionID,
			Subject:   claims.UserID,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
		},
		Provider: claims.Provider,
		Name:     claims.Name,
		Email:    claims.Email,
		Picture:  claims.Picture,
		IDToken:  claims.IDToken,
	}).SignedString(ti.secret.Get())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tk, nil
}

// Validate checks signature, issuer and expiry and returns the session claims
func (ti *JwtIssuer) Validate(token string) (SessionClaims, error) {
	var c jwtClaims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return ti.secret.Get(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if c.ID == "" || c.Subject == "" {
		return SessionClaims{}, fmt.Errorf("%w: missing session or subject", ErrInvalidToken)
	}

	return SessionClaims{
		SessionID: c.ID,
		UserID:    c.Subject,
		Provider:  c.Provider,
		Name:      c.Name,
		Email:     c.Email,
		Picture:   c.Picture,
		IDToken:   c.IDToken,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
