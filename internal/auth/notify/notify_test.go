package notify

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestMasking(t *testing.T) {
	require.Equal(t, "+15*****4567", MaskPhone("+15551234567"))
	require.Equal(t, "****", MaskPhone("1234"))
	require.Equal(t, "sh*****@example.com", MaskEmail("shopper@example.com"))
	require.Equal(t, "a@example.com", MaskEmail("a@example.com"))
	require.Equal(t, "+15*****4567", MaskDestination("sms", "+15551234567"))
}

func TestLogSenderHidesCodesByDefault(t *testing.T) {
	var buf bytes.Buffer
	s := &LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil)), AppName: "Shop"}

	d, err := s.SendSMSCode(context.Background(), "+15551234567", Code{Value: "987654", Purpose: domain.PurposeLogin, ExpiresIn: 10 * time.Minute})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(d.MessageID, "sms_"))
	require.Contains(t, buf.String(), "+15*****4567")
	require.NotContains(t, buf.String(), "987654")
	require.NotContains(t, buf.String(), "+15551234567")
}

func TestLogSenderRevealsCodesWhenAsked(t *testing.T) {
	var buf bytes.Buffer
	s := &LogSender{Logger: slog.New(slog.NewTextHandler(&buf, nil)), RevealCodes: true}

	d, err := s.SendEmailCode(context.Background(), "shopper@example.com", Code{Value: "987654", Purpose: domain.PurposeMFASetup})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(d.MessageID, "email_"))
	require.Contains(t, buf.String(), "987654")
}

type countingSender struct{ sent int }

func (c *countingSender) SendEmailCode(context.Context, string, Code) (Delivery, error) {
	c.sent++
	return Delivery{MessageID: "x"}, nil
}

func (c *countingSender) SendSMSCode(context.Context, string, Code) (Delivery, error) {
	c.sent++
	return Delivery{MessageID: "x"}, nil
}

func TestThrottledLimitsPerDestination(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	inner := &countingSender{}
	th := &Throttled{Email: inner, SMS: inner, Limiter: rl}
	ctx := context.Background()

	for range 2 {
		_, err := th.SendEmailCode(ctx, "a@example.com", Code{})
		require.NoError(t, err)
	}
	_, err := th.SendEmailCode(ctx, "a@example.com", Code{})
	require.ErrorIs(t, err, ErrRateLimited)

	// Other destinations and channels have their own budget.
	_, err = th.SendEmailCode(ctx, "b@example.com", Code{})
	require.NoError(t, err)
	_, err = th.SendSMSCode(ctx, "a@example.com", Code{})
	require.NoError(t, err)
	require.Equal(t, 4, inner.sent)

	// Tokens refill over the window.
	now = now.Add(30 * time.Second)
	_, err = th.SendEmailCode(ctx, "a@example.com", Code{})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	require.Equal(t, 3, rl.Prune(time.Minute))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	for range 100 {
		require.True(t, rl.Allow("x"))
	}
}
