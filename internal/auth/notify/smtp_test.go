package notify

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestSMTPSender(captured *capturedMail, err error) *SMTPSender {
	s := NewSMTPSender(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "secret",
		From:     "noreply@arviscollection.com",
		AppName:  "Arvi's Collection",
	})
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		*captured = capturedMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)}
		return err
	}
	return s
}

func TestSMTPSenderRendersPurposeCopy(t *testing.T) {
	var mail capturedMail
	s := newTestSMTPSender(&mail, nil)

	d, err := s.SendEmailCode(context.Background(), "shopper@example.com", Code{
		Value:     "123456",
		Purpose:   domain.PurposePasswordReset,
		ExpiresIn: 30 * time.Minute,
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(d.MessageID, "@arviscollection.com>"))

	require.Equal(t, "smtp.example.com:587", mail.addr)
	require.NotNil(t, mail.auth)
	require.Equal(t, "noreply@arviscollection.com", mail.from)
	require.Equal(t, []string{"shopper@example.com"}, mail.to)
	require.Contains(t, mail.msg, "Message-ID: "+d.MessageID)
	require.Contains(t, mail.msg, "Password Reset Code")
	require.Contains(t, mail.msg, "Password Reset Request")
	require.Contains(t, mail.msg, "123456")
	require.Contains(t, mail.msg, "expire in 30 minutes")
	require.Contains(t, mail.msg, "2026")
}

func TestSMTPSenderEscapesAppName(t *testing.T) {
	var mail capturedMail
	s := newTestSMTPSender(&mail, nil)
	s.cfg.AppName = "<b>Shop</b>"

	_, err := s.SendEmailCode(context.Background(), "shopper@example.com", Code{Value: "1", Purpose: domain.PurposeLogin})
	require.NoError(t, err)
	require.Contains(t, mail.msg, "&lt;b&gt;Shop&lt;/b&gt;")
}

func TestSMTPSenderWrapsTransportErrors(t *testing.T) {
	var mail capturedMail
	boom := errors.New("connection refused")
	s := newTestSMTPSender(&mail, boom)

	_, err := s.SendEmailCode(context.Background(), "shopper@example.com", Code{Value: "1", Purpose: domain.PurposeLogin})
	require.ErrorIs(t, err, boom)
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	var mail capturedMail
	s := newTestSMTPSender(&mail, nil)

	_, err := s.SendEmailCode(context.Background(), "a@example.com\r\nBcc: b@example.com", Code{Value: "1"})
	require.Error(t, err)
	require.Empty(t, mail.addr)
}

func TestSMTPSenderHonoursCancellation(t *testing.T) {
	var mail capturedMail
	s := newTestSMTPSender(&mail, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.SendEmailCode(ctx, "shopper@example.com", Code{Value: "1"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestUnknownPurposeFallsBack(t *testing.T) {
	subject, body, err := renderEmail("Shop", Code{Value: "42", Purpose: "other", ExpiresIn: time.Minute}, time.Now())
	require.NoError(t, err)
	require.Equal(t, "Shop - Verification Code", subject)
	require.Contains(t, body, "Verification Required")
	require.Contains(t, body, "1 minute.")
}
