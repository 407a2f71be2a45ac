package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/jwtx"
)

// LoadSessionSigner returns the signer for session tokens.
//
// The Ed25519 key lives at path, sealed with codec. A missing file is
// generated and written. With persist unset (the master key is ephemeral, so
// the file could never be opened again) a fresh key is kept in memory only and
// every session is invalidated on restart.
func LoadSessionSigner(path string, codec *cryptox.Codec, persist bool, logger *slog.Logger) (*jwtx.Signer, error) {
	if !persist || path == "" {
		pemKey, err := cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		logger.Warn("using an ephemeral session key; all sessions end on restart")
		return jwtx.NewSigner(pemKey)
	}

	path = filepath.Clean(path)
	sealed, err := os.ReadFile(path)
	switch {
	case err == nil:
		pemKey, err := codec.Reveal(strings.TrimSpace(string(sealed)))
		if err != nil {
			return nil, fmt.Errorf("failed to open session key %s: %w", path, err)
		}
		signer, err := jwtx.NewSigner([]byte(pemKey))
		if err != nil {
			return nil, err
		}
		logger.Info("session key loaded", "kid", signer.KID())
		return signer, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}

	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	signer, err := jwtx.NewSigner(pemKey)
	if err != nil {
		return nil, err
	}

	enc, err := codec.Encrypt(string(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to seal session key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create session key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(enc), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write session key: %w", err)
	}

	logger.Info("generated session key", "kid", signer.KID(), "path", path)
	return signer, nil
}
