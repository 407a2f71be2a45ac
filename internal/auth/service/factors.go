package service

import (
	"context"
	"fmt"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters shared by enrolment and validation. Skew allows two 30s
// steps either side of now.
const (
	totpPeriod = 30
	totpSkew   = 2
	totpDigits = otp.DigitsSix
)

// factor is what a method can do: check a code, and optionally deliver one.
type factor struct {
	method domain.Method

	// verify checks code for u under purpose.
	verify func(ctx context.Context, u domain.User, purpose domain.Purpose, code string) error

	// deliver sends a fresh code for purpose and returns the masked
	// destination. Nil for methods whose codes are generated client side.
	deliver func(ctx context.Context, u domain.User, purpose domain.Purpose) (string, error)
}

// factorFor resolves a method to its capabilities.
func (s *MFAService) factorFor(m domain.Method) (factor, error) {
	switch m {
	case domain.MethodTOTP:
		return factor{
			method: m,
			verify: func(_ context.Context, u domain.User, _ domain.Purpose, code string) error {
				cfg, ok := u.Method(domain.MethodTOTP)
				if !ok || cfg.Secret == "" {
					return ErrMethodNotEnabled
				}
				if !validateTOTP(code, cfg.Secret, s.now()) {
					return ErrInvalidCode
				}
				return nil
			},
		}, nil

	case domain.MethodSMS, domain.MethodEmail:
		return factor{
			method: m,
			verify: func(ctx context.Context, u domain.User, purpose domain.Purpose, code string) error {
				return s.verifyCode(ctx, u.ID, m, purpose, code)
			},
			deliver: func(ctx context.Context, u domain.User, purpose domain.Purpose) (string, error) {
				return s.issueCode(ctx, u, m, purpose)
			},
		}, nil

	default:
		return factor{}, fmt.Errorf("%w: %q", ErrMethodNotEnabled, m)
	}
}

// validateTOTP checks a six digit SHA1 code at now.
func validateTOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
