package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// pepperLength is the number of random bytes in a generated pepper.
const pepperLength = 32

// ErrPepperMissing is returned in production when neither an explicit pepper
// nor an existing pepper file is available.
var ErrPepperMissing = errors.New("cryptox: password pepper is not configured")

// LoadOrGeneratePepper returns the pepper mixed into every password hash.
//
// An explicit value (usually from AUTH_PASSWORD_PEPPER) wins. Otherwise the
// pepper is read from path. Outside production a missing file is generated
// and persisted; in production a missing pepper is fatal because every stored
// hash would silently stop verifying.
func LoadOrGeneratePepper(path, value string, production bool) (string, error) {
	if value = strings.TrimSpace(value); value != "" {
		return value, nil
	}
	if path == "" {
		return "", ErrPepperMissing
	}

	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepper := strings.TrimSpace(string(data))
		if pepper == "" {
			return "", fmt.Errorf("cryptox: pepper file %s is empty", path)
		}
		return pepper, nil
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("cryptox: read pepper file: %w", err)
	case production:
		return "", ErrPepperMissing
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("cryptox: create pepper dir: %w", err)
	}

	buf := make([]byte, pepperLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate pepper: %w", err)
	}
	pepper := base64.RawURLEncoding.EncodeToString(buf)

	if err := os.WriteFile(path, []byte(pepper), 0o600); err != nil {
		return "", fmt.Errorf("cryptox: write pepper file: %w", err)
	}
	return pepper, nil
}
