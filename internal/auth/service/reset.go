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
	resetCodeDigits      = 8
	resetTTL             = 30 * time.Minute
	resetMaxAttempts     = 3
	resetInitiatedNotice = "If an account with that email exists, a password reset code has been sent."
)

// InitiatePasswordReset starts a forgot-password flow. The response is the
// same whether or not email belongs to an account: unknown emails get a
// decoy request that can never verify, and the code is delivered in the
// background with failures logged rather than returned.
func (s *MFAService) InitiatePasswordReset(ctx context.Context, email string) (domain.PasswordResetInitiation, error) {
	email = cryptox.NormalizeEmail(email)

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.PasswordResetInitiation{}, err
	}
	plain, err := cryptox.GenerateNumericCode(resetCodeDigits)
	if err != nil {
		return domain.PasswordResetInitiation{}, err
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u = domain.User{}
	case err != nil:
		return domain.PasswordResetInitiation{}, fmt.Errorf("get user: %w", err)
	}

	now := s.now()
	_, err = s.Store.PasswordResets().CreateReset(ctx, domain.PasswordResetRequest{
		UserID:        u.ID,
		Email:         email,
		ResetToken:    token,
		ResetCodeHash: s.Hasher.Fingerprint(plain),
		ExpiresAt:     now.Add(resetTTL),
		MaxAttempts:   resetMaxAttempts,
	})
	if err != nil {
		return domain.PasswordResetInitiation{}, fmt.Errorf("store password reset: %w", err)
	}

	if u.ID != "" {
		s.sendResetCode(ctx, u, notify.Code{Value: plain, Purpose: domain.PurposePasswordReset, ExpiresIn: resetTTL})
		slogx.Security(ctx, nil, "PASSWORD_RESET_INITIATED", u.ID)
	}

	return domain.PasswordResetInitiation{Message: resetInitiatedNotice, ResetToken: token}, nil
}

// sendResetCode delivers code by email, and by SMS when SMS MFA is enabled,
// in the background so known and unknown emails return alike. Failures are
// only logged.
func (s *MFAService) sendResetCode(ctx context.Context, u domain.User, code notify.Code) {
	ctx = context.WithoutCancel(ctx)

	s.deliveries.Add(1)
	go func() {
		defer s.deliveries.Done()
		l := slogx.FromContext(ctx)

		if _, err := s.deliver(ctx, u, domain.MethodEmail, code); err != nil {
			l.Warn("password reset email not delivered", "user_id", u.ID, "error", err)
		}
		if cfg, ok := u.Method(domain.MethodSMS); ok && cfg.Enabled {
			if _, err := s.deliver(ctx, u, domain.MethodSMS, code); err != nil {
				l.Warn("password reset sms not delivered", "user_id", u.ID, "error", err)
			}
		}
	}()
}

// VerifyPasswordResetCode checks the code delivered for token. Every call
// counts as an attempt, including calls after expiry.
func (s *MFAService) VerifyPasswordResetCode(ctx context.Context, token, code string) error {
	unlock := s.locks.Lock("reset:" + token)
	defer unlock()

	now := s.now()
	var outcome error
	_, err := s.Store.PasswordResets().UpdateReset(ctx, token, func(r *domain.PasswordResetRequest) error {
		if r.Used {
			return ErrNotFound
		}
		previous := r.Attempts
		r.Attempts++
		r.LastAttemptAt = &now

		switch {
		case !now.Before(r.ExpiresAt):
			outcome = ErrExpired
		case previous >= r.MaxAttempts:
			outcome = ErrAttemptsExceeded
		case r.UserID == "" || !s.Hasher.FingerprintEqual(code, r.ResetCodeHash):
			outcome = ErrInvalidCode
			if r.Attempts >= r.MaxAttempts {
				outcome = ErrAttemptsExceeded
			}
		default:
			r.Verified = true
			r.VerifiedAt = &now
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return outcome
}

// CompletePasswordReset sets a new password for a verified request. The
// request is consumed only once the password is stored, and the reset lock
// keeps it to a single completion. The user's token version is bumped to
// revoke existing sessions and any lockout is cleared.
func (s *MFAService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	unlock := s.locks.Lock("reset:" + token)
	defer unlock()

	r, err := s.Store.PasswordResets().GetOpenReset(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get password reset: %w", err)
	}

	now := s.now()
	switch {
	case r.Used:
		return ErrNotFound
	case !now.Before(r.ExpiresAt):
		return ErrExpired
	case !r.Verified || r.UserID == "":
		return ErrInvalidCode
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	unlockUser := s.lockUser(r.UserID)
	defer unlockUser()

	_, err = s.updateUser(ctx, r.UserID, func(u *domain.User) error {
		u.PasswordHash = hash
		u.TokenVersion++
		u.LoginAttempts = 0
		u.AccountLocked = false
		u.LockUntil = nil
		u.PasswordChangedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	_, err = s.Store.PasswordResets().UpdateReset(ctx, token, func(r *domain.PasswordResetRequest) error {
		r.Used = true
		r.UsedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("consume password reset: %w", err)
	}

	slogx.Security(ctx, nil, "PASSWORD_RESET_COMPLETED", r.UserID)
	return nil
}
