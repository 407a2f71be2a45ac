package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// CiphertextPrefix tags every value produced by Codec.Encrypt. The version
// segment leaves room for a future key or algorithm change.
const CiphertextPrefix = "enc:v1:"

var (
	// ErrMasterKeyMissing is returned in production when no master key is
	// configured.
	ErrMasterKeyMissing = errors.New("cryptox: master encryption key is not configured")
	// ErrNotCiphertext is returned by Decrypt for values without the
	// ciphertext tag.
	ErrNotCiphertext = errors.New("cryptox: value is not tagged ciphertext")
	// ErrDecrypt is returned when a tagged value fails to authenticate or
	// decode.
	ErrDecrypt = errors.New("cryptox: decryption failed")
)

// Codec performs field-level authenticated encryption with AES-256-GCM.
// Output is CiphertextPrefix followed by base64url([nonce][ciphertext][tag]).
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives a 32-byte AES-256 key from keyMaterial with SHA-256.
func NewCodec(keyMaterial []byte) (*Codec, error) {
	if len(keyMaterial) == 0 {
		return nil, ErrMasterKeyMissing
	}
	key := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Codec{aead: gcm}, nil
}

// LoadMasterKey resolves the master key material from, in order, the file at
// path and the explicit value (usually AUTH_MASTER_KEY). With neither set, a
// development process gets an ephemeral random key, meaning encrypted fields
// won't survive a restart; production fails with ErrMasterKeyMissing.
func LoadMasterKey(path, value string, production bool) (key []byte, ephemeral bool, err error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read master key file: %w", err)
		}
		data = []byte(strings.TrimSpace(string(data)))
		if len(data) == 0 {
			return nil, false, ErrMasterKeyMissing
		}
		return data, false, nil
	}
	if value != "" {
		return []byte(value), false, nil
	}
	if production {
		return nil, false, ErrMasterKeyMissing
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate ephemeral master key: %w", err)
	}
	return key, true, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return CiphertextPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Codec) Decrypt(value string) (string, error) {
	if !IsCiphertext(value) {
		return "", ErrNotCiphertext
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, CiphertextPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}

// Reveal returns the plaintext for a stored field. Values written before
// encryption was enabled carry no tag and are returned unchanged.
func (c *Codec) Reveal(value string) (string, error) {
	if !IsCiphertext(value) {
		return value, nil
	}
	return c.Decrypt(value)
}

// IsCiphertext reports whether value carries the ciphertext tag.
func IsCiphertext(value string) bool {
	return strings.HasPrefix(value, CiphertextPrefix)
}

// EncryptJSON serialises v as JSON and encrypts the result.
func EncryptJSON[T any](c *Codec, v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode value: %w", err)
	}
	return c.Encrypt(string(data))
}

// DecryptJSON reverses EncryptJSON. Untagged legacy input is decoded as JSON
// directly and, failing that, returned as a raw string when T is a string.
func DecryptJSON[T any](c *Codec, value string) (T, error) {
	var out T

	plaintext, err := c.Reveal(value)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(plaintext), &out); err != nil {
		if s, ok := any(&out).(*string); ok && !IsCiphertext(value) {
			*s = plaintext
			return out, nil
		}
		return out, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}
