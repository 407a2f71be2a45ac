package service

import (
	"testing"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/arvicollection/authcore/internal/auth/notify"
	"github.com/arvicollection/authcore/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	now := h.clock.Now()

	_, err := h.store.VerificationCodes().CreateCode(h.ctx, domain.VerificationCode{
		UserID: "u1", Purpose: domain.PurposeLogin, ExpiresAt: now.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = h.store.VerificationCodes().CreateCode(h.ctx, domain.VerificationCode{
		UserID: "u1", Purpose: domain.PurposeLogin, ExpiresAt: now.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = h.store.Challenges().CreateChallenge(h.ctx, domain.MFAChallenge{
		ChallengeID: "old", UserID: "u1", ExpiresAt: now.Add(-25 * time.Hour),
	})
	require.NoError(t, err)
	_, err = h.store.PasswordResets().CreateReset(h.ctx, domain.PasswordResetRequest{
		ResetToken: "fresh", ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	hk := NewHousekeepingService(h.store, slogx.Discard(), time.Hour, 0)
	hk.Now = h.clock.Now
	hk.Limiter = notify.NewRateLimiter(1, time.Minute)
	require.True(t, hk.Limiter.Allow("email:a@example.com"))
	require.Equal(t, DefaultRetention, hk.Retention)

	require.Equal(t, 2, hk.Cleanup(h.ctx))
	// Limiters seen within the interval survive.
	require.False(t, hk.Limiter.Allow("email:a@example.com"))

	_, err = h.store.Challenges().GetChallenge(h.ctx, "old")
	require.Error(t, err)
	_, err = h.store.PasswordResets().GetOpenReset(h.ctx, "fresh")
	require.NoError(t, err)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	hk := NewHousekeepingService(h.store, slogx.Discard(), time.Hour, time.Hour)
	hk.Start()
	hk.Stop()
}
