package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPepper = "test-pepper"

func TestHasherHash(t *testing.T) {
	h := NewHasher(testPepper)

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 200)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")

			require.NoError(t, h.Verify(tt.password, hash))
			require.ErrorIs(t, h.Verify(tt.password+"x", hash), ErrPasswordMismatch)
			require.False(t, h.NeedsRehash(hash))
		})
	}
}

func TestHasherHash_UniqueSalts(t *testing.T) {
	h := NewHasher(testPepper)

	hash1, err := h.Hash("samepassword")
	require.NoError(t, err)
	hash2, err := h.Hash("samepassword")
	require.NoError(t, err)

	require.NotEqual(t, hash1, hash2, "hashes should differ due to unique salts")
}

func TestHasherVerify_PepperMatters(t *testing.T) {
	hash, err := NewHasher("pepper-one").Hash("C0rrect!Horse9")
	require.NoError(t, err)

	require.NoError(t, NewHasher("pepper-one").Verify("C0rrect!Horse9", hash))
	require.ErrorIs(t, NewHasher("pepper-two").Verify("C0rrect!Horse9", hash), ErrPasswordMismatch)
}

func TestHasherVerify_MalformedHashes(t *testing.T) {
	h := NewHasher(testPepper)

	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$",
	} {
		err := h.Verify("whatever", hash)
		require.ErrorIs(t, err, ErrUnknownHashFormat, "hash %q", hash)
	}
}

func TestHasherVerify_LegacyBcrypt(t *testing.T) {
	h := NewHasher(testPepper)

	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy!Pass1"+testPepper), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, h.Verify("Legacy!Pass1", string(legacy)))
	require.ErrorIs(t, h.Verify("Legacy!Pass2", string(legacy)), ErrPasswordMismatch)
	require.True(t, h.NeedsRehash(string(legacy)))
}

func TestHasherFingerprint(t *testing.T) {
	h := NewHasher(testPepper)

	fp := h.Fingerprint("123456")
	require.Len(t, fp, 64)
	require.Equal(t, fp, h.Fingerprint("123456"), "fingerprint must be deterministic")
	require.NotEqual(t, fp, NewHasher("other").Fingerprint("123456"), "fingerprint must be keyed")
	require.NotEqual(t, fp, FingerprintToken("123456"))

	require.True(t, h.FingerprintEqual("123456", fp))
	require.False(t, h.FingerprintEqual("123457", fp))
}
