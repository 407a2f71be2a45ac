package service

import (
	"testing"

	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestCredentialService(t *testing.T) {
	t.Parallel()
	s := &CredentialService{Hasher: cryptox.NewHasher(testPepper)}

	t.Run("hash and verify", func(t *testing.T) {
		hash, err := s.HashPassword(testPassword)
		require.NoError(t, err)
		require.True(t, s.VerifyPassword(testPassword, hash))
		require.False(t, s.VerifyPassword("wrong", hash))
		require.False(t, s.VerifyPassword(testPassword, "not-a-hash"))
	})

	t.Run("policy", func(t *testing.T) {
		for _, pw := range []string{"password", "12345678", "aaaaaaaa1!"} {
			require.False(t, s.ValidatePassword(pw).Valid, pw)
		}
		require.True(t, s.ValidatePassword(testPassword).Valid)
		require.ErrorIs(t, checkPassword("short"), ErrValidationFailed)
		require.NoError(t, checkPassword(testPassword))
	})

	t.Run("generated passwords satisfy the policy", func(t *testing.T) {
		for _, length := range []int{0, 8, 16, 500} {
			pw, err := s.GenerateSecurePassword(length)
			require.NoError(t, err)
			require.True(t, s.ValidatePassword(pw).Valid, pw)
		}
	})

	t.Run("tokens", func(t *testing.T) {
		tok, err := s.GenerateSecureToken(cryptox.TokenSize256)
		require.NoError(t, err)
		require.Len(t, tok, 64)
	})

	t.Run("input hygiene", func(t *testing.T) {
		require.Equal(t, "hello", s.SanitizeInput("<b>hello</b>"))
		require.True(t, s.ValidateEmail("shopper@example.com"))
		require.False(t, s.ValidateEmail("not an email"))
	})
}
