package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/notify"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/slogx"
)

const (
	codeDigits      = 6
	codeTTL         = 10 * time.Minute
	codeMaxAttempts = 3
)

// issueCode retires the user's open codes for purpose, stores a fresh one and
// delivers it over method. It returns the masked destination. Callers hold
// the user lock.
func (s *MFAService) issueCode(ctx context.Context, u domain.User, method domain.Method, purpose domain.Purpose) (string, error) {
	now := s.now()

	plain, err := cryptox.GenerateNumericCode(codeDigits)
	if err != nil {
		return "", err
	}

	if err := s.retireCodes(ctx, u.ID, purpose, now); err != nil {
		return "", err
	}

	_, err = s.Store.VerificationCodes().CreateCode(ctx, domain.VerificationCode{
		UserID:      u.ID,
		CodeHash:    s.Hasher.Fingerprint(plain),
		Method:      method,
		Purpose:     purpose,
		MaxAttempts: codeMaxAttempts,
		ExpiresAt:   now.Add(codeTTL),
	})
	if err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}

	return s.deliver(ctx, u, method, notify.Code{Value: plain, Purpose: purpose, ExpiresIn: codeTTL})
}

// retireCodes marks every open code for (userID, purpose) used, without a
// verifiedAt, so at most one code is ever active.
func (s *MFAService) retireCodes(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) error {
	open, err := s.Store.VerificationCodes().ListOpenCodes(ctx, userID, purpose)
	if err != nil {
		return fmt.Errorf("list open codes: %w", err)
	}
	for _, c := range open {
		_, err := s.Store.VerificationCodes().UpdateCode(ctx, c.ID, func(c *domain.VerificationCode) error {
			if c.Open() {
				c.Used = true
				c.RetiredAt = &now
			}
			return nil
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("retire code: %w", err)
		}
	}
	return nil
}

// verifyCode checks a delivered code against the user's newest open code for
// purpose. The code only verifies over the method it was sent with. Every call
// counts as an attempt, expired or not, and the code locks once its attempts
// run out.
func (s *MFAService) verifyCode(ctx context.Context, userID string, method domain.Method, purpose domain.Purpose, plain string) error {
	now := s.now()

	open, err := s.Store.VerificationCodes().ListOpenCodes(ctx, userID, purpose)
	if err != nil {
		return fmt.Errorf("list open codes: %w", err)
	}
	if len(open) == 0 {
		return ErrNotFound
	}
	latest := open[len(open)-1]

	var outcome error
	_, err = s.Store.VerificationCodes().UpdateCode(ctx, latest.ID, func(c *domain.VerificationCode) error {
		if !c.Open() {
			return ErrNotFound
		}
		c.Attempts++

		switch {
		case !now.Before(c.ExpiresAt):
			outcome = ErrExpired
		case c.Method != method:
			outcome = ErrInvalidCode
		case c.Attempts <= c.MaxAttempts && s.Hasher.FingerprintEqual(plain, c.CodeHash):
			c.Used = true
			c.VerifiedAt = &now
			outcome = nil
		default:
			outcome = ErrInvalidCode
		}

		if outcome != nil && c.Attempts >= c.MaxAttempts {
			c.Locked = true
			c.LockedAt = &now
			outcome = ErrAttemptsExceeded
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if errors.Is(outcome, ErrAttemptsExceeded) {
		slogx.FromContext(ctx).Warn("verification code locked", "user_id", userID, "method", method, "purpose", purpose)
	}
	return outcome
}

// deliver sends code over method and returns the masked destination.
func (s *MFAService) deliver(ctx context.Context, u domain.User, method domain.Method, code notify.Code) (string, error) {
	var (
		to  string
		err error
	)

	switch method {
	case domain.MethodSMS:
		to = smsDestination(u)
		if to == "" {
			return "", fmt.Errorf("%w: no phone number on file", ErrValidationFailed)
		}
		_, err = s.SMS.SendSMSCode(ctx, to, code)
		to = notify.MaskPhone(to)
	case domain.MethodEmail:
		to = u.Email
		_, err = s.Email.SendEmailCode(ctx, to, code)
		to = notify.MaskEmail(to)
	default:
		return "", fmt.Errorf("%w: %s codes are not delivered", ErrValidationFailed, method)
	}

	if err != nil {
		slogx.FromContext(ctx).Error("failed to deliver verification code",
			"user_id", u.ID,
			"method", method,
			"purpose", code.Purpose,
			"error", err,
		)
		return "", transportError(err)
	}
	return to, nil
}

func transportError(err error) error {
	if errors.Is(err, notify.ErrRateLimited) {
		return ErrRateLimited
	}
	return fmt.Errorf("%w: %w", ErrTransportFailure, err)
}

// smsDestination is the phone registered for SMS MFA, falling back to the
// profile phone.
func smsDestination(u domain.User) string {
	if cfg, ok := u.Method(domain.MethodSMS); ok && cfg.PhoneNumber != "" {
		return cfg.PhoneNumber
	}
	return u.Phone
}
