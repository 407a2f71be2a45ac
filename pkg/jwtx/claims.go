// Package jwtx signs and verifies the storefront's session tokens.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default lifetime of a session token.
const DefaultSessionTTL = 24 * time.Hour

// Authentication Methods Reference values.
const (
	AMRPassword = "pwd" // password-based authentication
	AMRMFA      = "mfa" // a second factor was used
	AMROTP      = "otp" // one-time password (TOTP or delivered code)
)

// Claims are session-token claims.
type Claims struct {
	jwt.RegisteredClaims

	// TokenVersion mirrors the user's token version at issue time. Bumping
	// the user's version revokes every outstanding session.
	TokenVersion int `json:"tv"`

	// Authentication Methods Reference ["pwd","mfa","otp"]
	AMR []string `json:"amr,omitempty"`
}

// NewSessionClaims builds minimally-correct claims.
func NewSessionClaims(subject string, tokenVersion int, amr []string, ttl time.Duration, issuer string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenVersion: tokenVersion,
		AMR:          amr,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before
// nbf at now, allowing leeway for clock skew.
func (c *Claims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
