package cryptox_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, key string) *cryptox.Codec {
	t.Helper()
	codec, err := cryptox.NewCodec([]byte(key))
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := newTestCodec(t, "test-master-key-for-encryption-12345")

	for _, plaintext := range []string{
		"",
		"+15551234567",
		"JBSWY3DPEHPK3PXP",
		"unicode ✓ données",
		strings.Repeat("x", 4096),
	} {
		sealed, err := codec.Encrypt(plaintext)
		require.NoError(t, err)
		require.True(t, cryptox.IsCiphertext(sealed))

		opened, err := codec.Decrypt(sealed)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestCodecRandomNonce(t *testing.T) {
	codec := newTestCodec(t, "test-master-key-multiple-times-xyz")

	a, err := codec.Encrypt("same input")
	require.NoError(t, err)
	b, err := codec.Encrypt("same input")
	require.NoError(t, err)

	require.NotEqual(t, a, b, "multiple encryptions should produce different ciphertexts")
}

func TestCodecWrongKey(t *testing.T) {
	sealed, err := newTestCodec(t, "key-one").Encrypt("secret")
	require.NoError(t, err)

	_, err = newTestCodec(t, "key-two").Decrypt(sealed)
	require.ErrorIs(t, err, cryptox.ErrDecrypt)
}

func TestCodecTamperedAndMalformed(t *testing.T) {
	codec := newTestCodec(t, "tamper-key")

	sealed, err := codec.Encrypt("secret")
	require.NoError(t, err)

	// Flip a character inside the encoded nonce.
	pos := len(cryptox.CiphertextPrefix) + 4
	flipped := byte('A')
	if sealed[pos] == 'A' {
		flipped = 'B'
	}
	tampered := sealed[:pos] + string(flipped) + sealed[pos+1:]

	for _, value := range []string{
		tampered,
		cryptox.CiphertextPrefix,
		cryptox.CiphertextPrefix + "!!not-base64!!",
		cryptox.CiphertextPrefix + "AAAA",
	} {
		_, err := codec.Decrypt(value)
		require.ErrorIs(t, err, cryptox.ErrDecrypt, "value %q", value)
	}

	_, err = codec.Decrypt("plain value")
	require.ErrorIs(t, err, cryptox.ErrNotCiphertext)
}

func TestCodecRevealLegacyPlaintext(t *testing.T) {
	codec := newTestCodec(t, "legacy-key")

	got, err := codec.Reveal("+15551234567")
	require.NoError(t, err)
	require.Equal(t, "+15551234567", got)

	sealed, err := codec.Encrypt("+15551234567")
	require.NoError(t, err)
	got, err = codec.Reveal(sealed)
	require.NoError(t, err)
	require.Equal(t, "+15551234567", got)
}

func TestCodecJSON(t *testing.T) {
	codec := newTestCodec(t, "json-key")

	type address struct {
		Street string `json:"street"`
		City   string `json:"city"`
	}
	in := address{Street: "1 Market St", City: "Sydney"}

	sealed, err := cryptox.EncryptJSON(codec, in)
	require.NoError(t, err)
	out, err := cryptox.DecryptJSON[address](codec, sealed)
	require.NoError(t, err)
	require.Equal(t, in, out)

	// Untagged legacy JSON decodes directly.
	out, err = cryptox.DecryptJSON[address](codec, `{"street":"2 George St","city":"Perth"}`)
	require.NoError(t, err)
	require.Equal(t, "Perth", out.City)

	// Untagged non-JSON strings fall back to the raw value.
	s, err := cryptox.DecryptJSON[string](codec, "+15551234567")
	require.NoError(t, err)
	require.Equal(t, "+15551234567", s)
}

func TestNewCodecRequiresKey(t *testing.T) {
	_, err := cryptox.NewCodec(nil)
	require.ErrorIs(t, err, cryptox.ErrMasterKeyMissing)
}

func TestLoadMasterKey(t *testing.T) {
	t.Run("file wins over value", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "master.key")
		require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

		key, ephemeral, err := cryptox.LoadMasterKey(path, "from-env", true)
		require.NoError(t, err)
		require.False(t, ephemeral)
		require.Equal(t, []byte("from-file"), key)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, _, err := cryptox.LoadMasterKey(filepath.Join(t.TempDir(), "nope"), "", false)
		require.Error(t, err)
	})

	t.Run("value", func(t *testing.T) {
		key, ephemeral, err := cryptox.LoadMasterKey("", "from-env", true)
		require.NoError(t, err)
		require.False(t, ephemeral)
		require.Equal(t, []byte("from-env"), key)
	})

	t.Run("production fails fast", func(t *testing.T) {
		_, _, err := cryptox.LoadMasterKey("", "", true)
		require.ErrorIs(t, err, cryptox.ErrMasterKeyMissing)
	})

	t.Run("development is ephemeral", func(t *testing.T) {
		key, ephemeral, err := cryptox.LoadMasterKey("", "", false)
		require.NoError(t, err)
		require.True(t, ephemeral)
		require.Len(t, key, 32)
	})
}
