package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/jwtx"
	"github.com/arvicollection/authcore/pkg/slogx"
)

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockDuration     = 30 * time.Minute
)

// LoginService checks passwords and enforces the account lockout policy.
type LoginService struct {
	Store    store.Store
	Hasher   *cryptox.Hasher
	MFA      *MFAService
	Sessions *SessionService // optional; without it no session is issued
	Now      func() time.Time

	MaxAttempts  int           // default DefaultMaxLoginAttempts
	LockDuration time.Duration // default DefaultLockDuration

	dummyOnce sync.Once
	dummyHash string
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// dummy returns a real hash so unknown emails cost the same as wrong
// passwords.
func (s *LoginService) dummy() string {
	s.dummyOnce.Do(func() {
		pw, err := cryptox.GenerateToken(cryptox.TokenSize128)
		if err == nil {
			s.dummyHash, _ = s.Hasher.Hash(pw)
		}
	})
	return s.dummyHash
}

// Login checks a password. Locked accounts are refused without looking at
// the password; too many mismatches lock the account. On success the caller
// either gets a session or, with MFA enabled, a challenge to answer through
// CompleteLogin.
func (s *LoginService) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	lockFor := s.LockDuration
	if lockFor <= 0 {
		lockFor = DefaultLockDuration
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, cryptox.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		_ = s.Hasher.Verify(password, s.dummy())
		return domain.LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("get user: %w", err)
	}

	now := s.now()
	var (
		outcome    error
		lockedNow  bool
		rehashFrom string
	)
	u, err = s.Store.Users().UpdateUser(ctx, u.ID, func(u *domain.User) error {
		if u.LockedAt(now) {
			return &LockedError{Until: *u.LockUntil}
		}
		if u.AccountLocked || u.LockUntil != nil {
			u.AccountLocked = false
			u.LockUntil = nil
			u.LoginAttempts = 0
		}

		if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
			u.LoginAttempts++
			if u.LoginAttempts >= maxAttempts {
				until := now.Add(lockFor)
				u.AccountLocked = true
				u.LockUntil = &until
				lockedNow = true
			}
			outcome = ErrInvalidCredentials
			return nil
		}

		u.LoginAttempts = 0
		u.AccountLocked = false
		u.LockUntil = nil
		u.LastLogin = &now
		if s.Hasher.NeedsRehash(u.PasswordHash) {
			if fresh, err := s.Hasher.Hash(password); err == nil {
				rehashFrom = u.PasswordHash[:4]
				u.PasswordHash = fresh
			}
		}
		return nil
	})
	if err != nil {
		return domain.LoginResult{}, err
	}

	l := slogx.FromContext(ctx)
	if lockedNow {
		slogx.Security(ctx, nil, "ACCOUNT_LOCKED", u.ID, "until", u.LockUntil)
	}
	if outcome != nil {
		return domain.LoginResult{}, outcome
	}
	if rehashFrom != "" {
		l.Info("password hash upgraded", "user_id", u.ID, "from", rehashFrom)
	}

	challenge, err := s.MFA.ChallengeMFA(ctx, u.ID)
	if err != nil {
		return domain.LoginResult{}, err
	}
	if challenge.Required {
		return domain.LoginResult{
			UserID:      u.ID,
			MFARequired: true,
			ChallengeID: challenge.ChallengeID,
			Methods:     challenge.Methods,
		}, nil
	}

	return s.result(ctx, u, []string{jwtx.AMRPassword})
}

// CompleteLogin answers the login challenge and issues the session.
func (s *LoginService) CompleteLogin(ctx context.Context, challengeID string, method domain.Method, code string) (domain.LoginResult, error) {
	userID, err := s.MFA.VerifyMFAChallenge(ctx, challengeID, method, code)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return s.completed(ctx, userID)
}

// CompleteLoginWithBackupCode answers the login challenge with a TOTP
// backup code and issues the session.
func (s *LoginService) CompleteLoginWithBackupCode(ctx context.Context, challengeID, code string) (domain.LoginResult, error) {
	userID, err := s.MFA.VerifyMFAChallengeWithBackupCode(ctx, challengeID, code)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return s.completed(ctx, userID)
}

func (s *LoginService) completed(ctx context.Context, userID string) (domain.LoginResult, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResult{}, ErrNotFound
	}
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("get user: %w", err)
	}
	return s.result(ctx, u, []string{jwtx.AMRPassword, jwtx.AMRMFA, jwtx.AMROTP})
}

func (s *LoginService) result(ctx context.Context, u domain.User, amr []string) (domain.LoginResult, error) {
	res := domain.LoginResult{UserID: u.ID}
	if s.Sessions == nil {
		return res, nil
	}
	session, err := s.Sessions.Issue(ctx, u, amr)
	if err != nil {
		return domain.LoginResult{}, err
	}
	res.Session = &session
	return res, nil
}
