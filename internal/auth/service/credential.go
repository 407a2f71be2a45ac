package service

import (
	"github.com/arvicollection/authcore/pkg/cryptox"
)

// generatedPasswordAttempts bounds how often GenerateSecurePassword redraws
// before giving up.
const generatedPasswordAttempts = 100

// CredentialService is the caller-facing password toolkit.
type CredentialService struct {
	Hasher *cryptox.Hasher
}

// HashPassword hashes a plaintext password with Argon2id.
func (s *CredentialService) HashPassword(password string) (string, error) {
	return s.Hasher.Hash(password)
}

// VerifyPassword reports whether password matches hash. Malformed hashes
// never match.
func (s *CredentialService) VerifyPassword(password, hash string) bool {
	return s.Hasher.Verify(password, hash) == nil
}

// ValidatePassword checks password against the storefront policy.
func (s *CredentialService) ValidatePassword(password string) cryptox.PasswordValidation {
	return cryptox.ValidatePassword(password)
}

// GenerateSecureToken returns a hex token carrying size random bytes.
func (s *CredentialService) GenerateSecureToken(size int) (string, error) {
	return cryptox.GenerateToken(size)
}

// GenerateSecurePassword returns a random password that satisfies the
// password policy.
func (s *CredentialService) GenerateSecurePassword(length int) (string, error) {
	length = max(length, cryptox.MinPasswordLength)
	length = min(length, cryptox.MaxPasswordLength)

	for range generatedPasswordAttempts {
		pw, err := cryptox.GenerateSecurePassword(length)
		if err != nil {
			return "", err
		}
		if cryptox.ValidatePassword(pw).Valid {
			return pw, nil
		}
	}
	return "", ErrValidationFailed
}

// SanitizeInput strips markup and script vectors from free text.
func (s *CredentialService) SanitizeInput(input string) string {
	return cryptox.SanitizeInput(input)
}

// ValidateEmail reports whether email is a plain address.
func (s *CredentialService) ValidateEmail(email string) bool {
	return cryptox.ValidateEmail(email)
}

// checkPassword validates password and returns a PolicyError listing every
// violated rule.
func checkPassword(password string) error {
	v := cryptox.ValidatePassword(password)
	if !v.Valid {
		return &PolicyError{Violations: v.Errors}
	}
	return nil
}
