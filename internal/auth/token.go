package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token lifetimes and type claims. Access tokens carry no type claim; every
// other kind is tagged so one kind can never be replayed as another.
const (
	AccessTokenTTL     = 30 * time.Minute
	RefreshTokenTTL    = 7 * 24 * time.Hour
	RememberMeTokenTTL = 30 * 24 * time.Hour

	TypeRefresh    = "refresh"
	TypeRememberMe = "remember_me"
)

// ErrInvalidToken is returned when a token fails signature, expiry, or
// type-claim verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// Issuer signs and verifies HS256 tokens whose subject is the account email.
type Issuer struct {
	secret []byte
}

// NewIssuer builds an Issuer around the shared signing secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

type claims struct {
	Type string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

func (i *Issuer) sign(subject, typ string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
			// The jti keeps back-to-back tokens for the same subject
			// distinct, so rotating a refresh token really revokes the
			// previous one.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

// AccessToken issues a short-lived token for API calls.
func (i *Issuer) AccessToken(email string) (string, error) {
	return i.sign(email, "", AccessTokenTTL)
}

// RefreshToken issues a long-lived token usable only at the refresh endpoint.
func (i *Issuer) RefreshToken(email string) (string, error) {
	return i.sign(email, TypeRefresh, RefreshTokenTTL)
}

// RememberMeToken issues the extended-session token.
func (i *Issuer) RememberMeToken(email string) (string, error) {
	return i.sign(email, TypeRememberMe, RememberMeTokenTTL)
}

func (i *Issuer) parse(token string) (*claims, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// VerifyAccess validates an access or remember-me token and returns the
// subject email. Refresh tokens are rejected here.
func (i *Issuer) VerifyAccess(token string) (string, error) {
	c, err := i.parse(token)
	if err != nil {
		return "", err
	}
	if c.Type == TypeRefresh {
		return "", ErrInvalidToken
	}
	if c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// VerifyRefresh validates a refresh token and returns the subject email.
// Any other token kind is rejected.
func (i *Issuer) VerifyRefresh(token string) (string, error) {
	c, err := i.parse(token)
	if err != nil {
		return "", err
	}
	if c.Type != TypeRefresh || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
