package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/jwtx"
)

// SessionService issues and validates signed session tokens.
type SessionService struct {
	Store    store.Store
	Signer   *jwtx.Signer
	Verifier *jwtx.Verifier
	Issuer   string
	TTL      time.Duration // default jwtx.DefaultSessionTTL
	Now      func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue signs a session for u carrying its current token version.
func (s *SessionService) Issue(_ context.Context, u domain.User, amr []string) (domain.Session, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(u.ID, u.TokenVersion, amr, ttl, s.Issuer, s.now())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign session: %w", err)
	}
	return domain.Session{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Validate verifies token and checks it has not been revoked by a token
// version bump.
func (s *SessionService) Validate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	u, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return jwtx.Claims{}, ErrSessionRevoked
	}
	if err != nil {
		return jwtx.Claims{}, fmt.Errorf("get user: %w", err)
	}
	if u.TokenVersion != claims.TokenVersion {
		return jwtx.Claims{}, ErrSessionRevoked
	}
	return claims, nil
}
