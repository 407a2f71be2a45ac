package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/notify"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount = 10  // Number of backup codes to generate
	qrCodeSize      = 200 // QR image width and height in pixels
)

// SetupData carries method specific enrolment input.
type SetupData struct {
	PhoneNumber string
}

// MFAService enrols, challenges and removes second factors, and runs the
// password reset flow.
type MFAService struct {
	Store  store.Store
	Hasher *cryptox.Hasher
	Email  notify.EmailSender
	SMS    notify.SMSSender
	Issuer string // Issuer name shown in authenticator apps
	Now    func() time.Time

	locks      keyedMutex
	deliveries sync.WaitGroup
}

// Wait blocks until codes handed to background delivery have been sent or
// have failed.
func (s *MFAService) Wait() {
	s.deliveries.Wait()
}

func (s *MFAService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MFAService) lockUser(userID string) func() {
	return s.locks.Lock("user:" + userID)
}

func (s *MFAService) getUser(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *MFAService) updateUser(ctx context.Context, userID string, fn func(*domain.User) error) (domain.User, error) {
	u, err := s.Store.Users().UpdateUser(ctx, userID, fn)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

// SetupMFA starts enrolment of method. The method stays disabled until
// VerifyMFASetup succeeds. For TOTP the secret, QR code and backup codes are
// returned here and never again.
func (s *MFAService) SetupMFA(ctx context.Context, userID string, method domain.Method, data SetupData) (domain.MFASetupResult, error) {
	if _, err := s.factorFor(method); err != nil {
		return domain.MFASetupResult{}, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.MFASetupResult{}, err
	}
	if cfg, ok := u.Method(method); ok && cfg.Enabled {
		return domain.MFASetupResult{}, ErrMethodAlreadyEnabled
	}

	switch method {
	case domain.MethodTOTP:
		return s.setupTOTP(ctx, u)
	case domain.MethodSMS:
		phone := strings.TrimSpace(data.PhoneNumber)
		if phone == "" {
			return domain.MFASetupResult{}, fmt.Errorf("%w: phone number is required", ErrValidationFailed)
		}
		return s.setupDelivered(ctx, u, method, phone)
	default:
		return s.setupDelivered(ctx, u, method, "")
	}
}

func (s *MFAService) setupTOTP(ctx context.Context, u domain.User) (domain.MFASetupResult, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFASetupResult{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return domain.MFASetupResult{}, err
	}

	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return domain.MFASetupResult{}, err
	}

	now := s.now()
	_, err = s.updateUser(ctx, u.ID, func(u *domain.User) error {
		setMethod(u, domain.MethodTOTP, domain.MethodConfig{
			Secret:      key.Secret(),
			BackupCodes: hashes,
			SetupAt:     now,
		})
		return nil
	})
	if err != nil {
		return domain.MFASetupResult{}, fmt.Errorf("failed to store MFA secret: %w", err)
	}

	return domain.MFASetupResult{
		Method:      domain.MethodTOTP,
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		QRCode:      qr,
		BackupCodes: codes,
	}, nil
}

func (s *MFAService) setupDelivered(ctx context.Context, u domain.User, method domain.Method, phone string) (domain.MFASetupResult, error) {
	now := s.now()
	u, err := s.updateUser(ctx, u.ID, func(u *domain.User) error {
		setMethod(u, method, domain.MethodConfig{PhoneNumber: phone, SetupAt: now})
		return nil
	})
	if err != nil {
		return domain.MFASetupResult{}, fmt.Errorf("failed to store MFA method: %w", err)
	}

	destination, err := s.issueCode(ctx, u, method, domain.PurposeMFASetup)
	if err != nil {
		return domain.MFASetupResult{}, err
	}
	return domain.MFASetupResult{Method: method, Destination: destination}, nil
}

// VerifyMFASetup confirms enrolment of method with a code and enables it.
// Every verification failure matches ErrInvalidCode; the cause is wrapped
// alongside it.
func (s *MFAService) VerifyMFASetup(ctx context.Context, userID string, method domain.Method, code string) error {
	f, err := s.factorFor(method)
	if err != nil {
		return err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	cfg, ok := u.Method(method)
	if !ok {
		return fmt.Errorf("%w: %w", ErrInvalidCode, ErrMethodNotEnabled)
	}
	if cfg.Enabled {
		return ErrMethodAlreadyEnabled
	}

	if err := f.verify(ctx, u, domain.PurposeMFASetup, code); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidCode, err)
	}

	now := s.now()
	_, err = s.updateUser(ctx, userID, func(u *domain.User) error {
		cfg, ok := u.Method(method)
		if !ok {
			return ErrMethodNotEnabled
		}
		cfg.Enabled = true
		cfg.VerifiedAt = &now
		cfg.DisabledAt = nil
		setMethod(u, method, cfg)
		u.MFAEnabled = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}

	slogx.Security(ctx, nil, "MFA_ENABLED", userID, "method", method)
	return nil
}

// RegenerateBackupCodes replaces the TOTP backup codes after verifying a
// current TOTP code.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID, totpCode string) ([]string, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cfg, ok := u.Method(domain.MethodTOTP)
	if !ok || !cfg.Enabled {
		return nil, ErrMethodNotEnabled
	}
	if !validateTOTP(totpCode, cfg.Secret, s.now()) {
		return nil, ErrInvalidCode
	}

	codes, hashes, err := s.newBackupCodes()
	if err != nil {
		return nil, err
	}
	_, err = s.updateUser(ctx, userID, func(u *domain.User) error {
		cfg, ok := u.Method(domain.MethodTOTP)
		if !ok || !cfg.Enabled {
			return ErrMethodNotEnabled
		}
		cfg.BackupCodes = hashes
		setMethod(u, domain.MethodTOTP, cfg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store backup codes: %w", err)
	}

	slogx.Security(ctx, nil, "MFA_BACKUP_CODES_REGENERATED", userID)
	return codes, nil
}

// SendDisableCode delivers the code DisableMFA expects for an SMS or email
// method and returns the masked destination.
func (s *MFAService) SendDisableCode(ctx context.Context, userID string, method domain.Method) (string, error) {
	f, err := s.factorFor(method)
	if err != nil {
		return "", err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if cfg, ok := u.Method(method); !ok || !cfg.Enabled {
		return "", ErrMethodNotEnabled
	}
	if f.deliver == nil {
		return "", fmt.Errorf("%w: %s codes are not delivered", ErrValidationFailed, method)
	}
	return f.deliver(ctx, u, domain.PurposeMFADisable)
}

// DisableMFA removes method after a fresh verification: a current TOTP code,
// or the code sent by SendDisableCode. Turning TOTP off wipes its secret and
// backup codes.
func (s *MFAService) DisableMFA(ctx context.Context, userID string, method domain.Method, code string) error {
	f, err := s.factorFor(method)
	if err != nil {
		return err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if cfg, ok := u.Method(method); !ok || !cfg.Enabled {
		return ErrMethodNotEnabled
	}

	if err := f.verify(ctx, u, domain.PurposeMFADisable, code); err != nil {
		return err
	}

	now := s.now()
	_, err = s.updateUser(ctx, userID, func(u *domain.User) error {
		cfg, ok := u.Method(method)
		if !ok {
			return ErrMethodNotEnabled
		}
		cfg.Enabled = false
		cfg.DisabledAt = &now
		if method == domain.MethodTOTP {
			cfg.Secret = ""
			cfg.BackupCodes = nil
		}
		setMethod(u, method, cfg)
		u.MFAEnabled = u.HasEnabledMethod()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to disable MFA: %w", err)
	}

	slogx.Security(ctx, nil, "MFA_DISABLED", userID, "method", method)
	return nil
}

// Status summarises the user's MFA configuration without secrets.
func (s *MFAService) Status(ctx context.Context, userID string) (domain.MFAStatus, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.MFAStatus{}, err
	}

	status := domain.MFAStatus{
		Enabled: u.MFAEnabled && u.HasEnabledMethod(),
		Methods: make(map[domain.Method]domain.MethodStatus, len(u.MFASettings)),
	}
	for _, m := range domain.Methods {
		cfg, ok := u.Method(m)
		if !ok {
			continue
		}
		ms := domain.MethodStatus{
			Enabled:    cfg.Enabled,
			Verified:   cfg.VerifiedAt != nil,
			VerifiedAt: cfg.VerifiedAt,
		}
		switch m {
		case domain.MethodTOTP:
			ms.BackupCodesRemaining = len(cfg.BackupCodes)
		case domain.MethodSMS:
			ms.Destination = notify.MaskPhone(smsDestination(u))
		case domain.MethodEmail:
			ms.Destination = notify.MaskEmail(u.Email)
		}
		status.Methods[m] = ms
	}
	return status, nil
}

// consumeBackupCode removes a matching backup code from the user's TOTP
// configuration.
func (s *MFAService) consumeBackupCode(ctx context.Context, userID, code string) error {
	code = cryptox.NormalizeBackupCode(code)
	_, err := s.updateUser(ctx, userID, func(u *domain.User) error {
		cfg, ok := u.Method(domain.MethodTOTP)
		if !ok || !cfg.Enabled {
			return ErrMethodNotEnabled
		}
		i := slices.IndexFunc(cfg.BackupCodes, func(hash string) bool {
			return s.Hasher.FingerprintEqual(code, hash)
		})
		if i < 0 {
			return ErrInvalidCode
		}
		cfg.BackupCodes = slices.Delete(slices.Clone(cfg.BackupCodes), i, i+1)
		setMethod(u, domain.MethodTOTP, cfg)
		return nil
	})
	return err
}

func (s *MFAService) newBackupCodes() (codes, hashes []string, err error) {
	codes = make([]string, backupCodeCount)
	hashes = make([]string, backupCodeCount)
	for i := range backupCodeCount {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes[i] = code
		hashes[i] = s.Hasher.Fingerprint(code)
	}
	return codes, hashes, nil
}

func setMethod(u *domain.User, m domain.Method, cfg domain.MethodConfig) {
	if u.MFASettings == nil {
		u.MFASettings = make(map[domain.Method]domain.MethodConfig)
	}
	u.MFASettings[m] = cfg
}

// qrDataURL renders the key's otpauth URL as a PNG data URL.
func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
