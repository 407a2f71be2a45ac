package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogSender is the development transport for both channels: it logs that a
// message would have been sent. The code itself is only logged when
// RevealCodes is set, which must never happen in production.
type LogSender struct {
	Logger      *slog.Logger
	AppName     string
	RevealCodes bool
}

// SendEmailCode implements EmailSender.
func (s *LogSender) SendEmailCode(ctx context.Context, to string, code Code) (Delivery, error) {
	return s.log(ctx, "email", to, code)
}

// SendSMSCode implements SMSSender.
func (s *LogSender) SendSMSCode(ctx context.Context, phone string, code Code) (Delivery, error) {
	return s.log(ctx, "sms", phone, code)
}

func (s *LogSender) log(ctx context.Context, channel, to string, code Code) (Delivery, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, err
	}

	d := Delivery{MessageID: channel + "_" + uuid.NewString()}
	attrs := []any{
		"channel", channel,
		"to", MaskDestination(channel, to),
		"purpose", code.Purpose,
		"message_id", d.MessageID,
	}
	if s.RevealCodes {
		if channel == "sms" {
			attrs = append(attrs, "body", renderSMS(s.AppName, code))
		} else {
			attrs = append(attrs, "code", code.Value)
		}
	}

	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "verification code dispatched", attrs...)
	return d, nil
}
