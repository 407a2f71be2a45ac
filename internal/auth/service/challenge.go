package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/slogx"
)

const (
	challengeTTL         = 5 * time.Minute
	challengeMaxAttempts = 5
)

// ChallengeMFA opens a login challenge listing every enabled method. Users
// without an enabled method get Required=false and no challenge.
func (s *MFAService) ChallengeMFA(ctx context.Context, userID string) (domain.MFAChallengeResponse, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return domain.MFAChallengeResponse{}, err
	}

	methods := u.EnabledMethods()
	if len(methods) == 0 {
		return domain.MFAChallengeResponse{Required: false}, nil
	}

	challengeID, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.MFAChallengeResponse{}, err
	}

	now := s.now()
	_, err = s.Store.Challenges().CreateChallenge(ctx, domain.MFAChallenge{
		ChallengeID:      challengeID,
		UserID:           u.ID,
		AvailableMethods: methods,
		ExpiresAt:        now.Add(challengeTTL),
		MaxAttempts:      challengeMaxAttempts,
	})
	if err != nil {
		return domain.MFAChallengeResponse{}, fmt.Errorf("store challenge: %w", err)
	}

	return domain.MFAChallengeResponse{
		Required:    true,
		ChallengeID: challengeID,
		Methods:     methods,
	}, nil
}

// SendChallengeCode delivers a login code for an SMS or email method of a
// pending challenge and returns the masked destination.
func (s *MFAService) SendChallengeCode(ctx context.Context, challengeID string, method domain.Method) (string, error) {
	f, err := s.factorFor(method)
	if err != nil {
		return "", err
	}

	unlock := s.locks.Lock("challenge:" + challengeID)
	defer unlock()

	c, err := s.Store.Challenges().GetChallenge(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get challenge: %w", err)
	}

	switch {
	case c.Completed:
		return "", ErrAlreadyCompleted
	case !s.now().Before(c.ExpiresAt):
		return "", ErrExpired
	case !c.Offers(method):
		return "", ErrMethodNotEnabled
	case f.deliver == nil:
		return "", fmt.Errorf("%w: %s codes are not delivered", ErrValidationFailed, method)
	}

	unlockUser := s.lockUser(c.UserID)
	defer unlockUser()

	u, err := s.getUser(ctx, c.UserID)
	if err != nil {
		return "", err
	}
	return f.deliver(ctx, u, domain.PurposeLogin)
}

// VerifyMFAChallenge answers a challenge with one of its methods and returns
// the user it belongs to. Any single listed method completes the challenge,
// and it completes exactly once.
func (s *MFAService) VerifyMFAChallenge(ctx context.Context, challengeID string, method domain.Method, code string) (string, error) {
	return s.answerChallenge(ctx, challengeID, method, false, func(u domain.User) error {
		f, err := s.factorFor(method)
		if err != nil {
			return err
		}
		if cfg, ok := u.Method(method); !ok || !cfg.Enabled {
			return ErrMethodNotEnabled
		}
		err = f.verify(ctx, u, domain.PurposeLogin, code)
		if errors.Is(err, ErrNotFound) {
			// No login code was sent, or it is spent.
			return ErrInvalidCode
		}
		return err
	})
}

// VerifyMFAChallengeWithBackupCode answers a challenge that offers TOTP with
// one of the user's backup codes, consuming it.
func (s *MFAService) VerifyMFAChallengeWithBackupCode(ctx context.Context, challengeID, code string) (string, error) {
	return s.answerChallenge(ctx, challengeID, domain.MethodTOTP, true, func(u domain.User) error {
		return s.consumeBackupCode(ctx, u.ID, code)
	})
}

func (s *MFAService) answerChallenge(
	ctx context.Context,
	challengeID string,
	method domain.Method,
	backupCode bool,
	verify func(domain.User) error,
) (string, error) {
	l := slogx.FromContext(ctx)

	unlock := s.locks.Lock("challenge:" + challengeID)
	defer unlock()

	// 1. Count the attempt before anything else so probing with the wrong
	// method or after expiry still exhausts the challenge.
	now := s.now()
	var structural error
	c, err := s.Store.Challenges().UpdateChallenge(ctx, challengeID, func(c *domain.MFAChallenge) error {
		if c.Completed {
			return ErrAlreadyCompleted
		}
		if c.Attempts >= c.MaxAttempts {
			return ErrAttemptsExceeded
		}
		c.Attempts++

		switch {
		case !now.Before(c.ExpiresAt):
			structural = ErrExpired
		case !c.Offers(method):
			structural = ErrMethodNotEnabled
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		if errors.Is(err, ErrAttemptsExceeded) {
			l.Warn("MFA challenge exceeded max attempts")
		}
		return "", err
	}
	if structural != nil {
		return "", structural
	}

	// 2. Verify the factor.
	unlockUser := s.lockUser(c.UserID)
	defer unlockUser()

	u, err := s.getUser(ctx, c.UserID)
	if err != nil {
		return "", err
	}
	if err := verify(u); err != nil {
		return "", err
	}

	// 3. Complete.
	completedAt := s.now()
	_, err = s.Store.Challenges().UpdateChallenge(ctx, challengeID, func(c *domain.MFAChallenge) error {
		if c.Completed {
			return ErrAlreadyCompleted
		}
		c.Completed = true
		c.CompletedAt = &completedAt
		c.Method = method
		c.BackupCode = backupCode
		return nil
	})
	if err != nil {
		return "", err
	}

	slogx.Security(ctx, nil, "MFA_VERIFIED", u.ID, "method", method, "backup_code", backupCode)
	return u.ID, nil
}
