// Package notify delivers one-time codes to users over email and SMS.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/arvicollection/authcore/internal/auth/domain"
)

// ErrRateLimited is returned when a destination has been sent too many codes
// in the current window.
var ErrRateLimited = errors.New("notify: too many messages to this destination")

// Code is a one-time code ready for delivery.
type Code struct {
	Value     string
	Purpose   domain.Purpose
	ExpiresIn time.Duration
}

// Delivery identifies a sent message.
type Delivery struct {
	MessageID string
}

// EmailSender delivers codes by email. An error means the message could not
// be handed off; implementations never panic.
type EmailSender interface {
	SendEmailCode(ctx context.Context, to string, code Code) (Delivery, error)
}

// SMSSender delivers codes by text message.
type SMSSender interface {
	SendSMSCode(ctx context.Context, phone string, code Code) (Delivery, error)
}
