package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // bare address, e.g. noreply@arviscollection.com
	AppName  string
}

// SMTPSender sends HTML emails through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
	now func() time.Time

	// sendMail is smtp.SendMail, swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for cfg.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, now: time.Now, sendMail: smtp.SendMail}
}

// SendEmailCode implements EmailSender.
func (s *SMTPSender) SendEmailCode(ctx context.Context, to string, code Code) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}
	if strings.ContainsAny(to, "\r\n") {
		return Delivery{}, fmt.Errorf("notify: invalid recipient")
	}

	subject, body, err := renderEmail(s.cfg.AppName, code, s.now())
	if err != nil {
		return Delivery{}, err
	}

	domain := s.cfg.From[strings.LastIndexByte(s.cfg.From, '@')+1:]
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.cfg.AppName), s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return Delivery{}, fmt.Errorf("notify: send email via %s: %w", addr, err)
	}
	return Delivery{MessageID: messageID}, nil
}
