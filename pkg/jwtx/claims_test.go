package jwtx_test

import (
	"testing"
	"time"

	"github.com/arvicollection/authcore/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "storefront",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("storefront"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		err := c.ValidateIssuer("admin")
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})
}

func TestValidateExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := jwtx.NewSessionClaims("user-1", 0, nil, time.Hour, "storefront", now)

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, c.ValidateExpiry(now.Add(30*time.Minute), 0))
	})

	t.Run("expired", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateExpiry(now.Add(2*time.Hour), 0), jwtx.ErrExpired)
	})

	t.Run("expired within leeway", func(t *testing.T) {
		require.NoError(t, c.ValidateExpiry(now.Add(time.Hour+time.Second), time.Minute))
	})

	t.Run("not yet valid", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateExpiry(now.Add(-time.Hour), 0), jwtx.ErrNotYetValid)
	})
}

func TestNewJTIUnique(t *testing.T) {
	require.NotEqual(t, jwtx.NewJTI(), jwtx.NewJTI())
}
