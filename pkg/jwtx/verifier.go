package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Verifier validates session tokens against a set of Ed25519 public keys.
type Verifier struct {
	issuer string
	leeway time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewVerifier returns a verifier that trusts the given public keys. An
// empty issuer disables the issuer check.
func NewVerifier(issuer string, leeway time.Duration, now func() time.Time, keys ...ed25519.PublicKey) *Verifier {
	if now == nil {
		now = time.Now
	}
	v := &Verifier{issuer: issuer, leeway: leeway, now: now, keys: make(map[string]ed25519.PublicKey)}
	for _, k := range keys {
		v.AddKey(k)
	}
	return v
}

// AddKey trusts another public key, e.g. the previous key during rotation.
func (v *Verifier) AddKey(pub ed25519.PublicKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[KeyID(pub)] = pub
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}

		v.mu.RLock()
		pub, ok := v.keys[kid]
		v.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !token.Valid {
		return Claims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(v.now(), v.leeway); err != nil {
		return Claims{}, err
	}

	return claims, nil
}
