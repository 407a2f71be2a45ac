package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// Security records an audit event such as MFA_ENABLED or ACCOUNT_LOCKED on
// the context logger, falling back to base.
func Security(ctx context.Context, base *slog.Logger, event, userID string, attrs ...any) {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		l = base
	}
	if l == nil {
		l = slog.Default()
	}
	l.InfoContext(ctx, "security_event", append([]any{"event", event, "user_id", userID}, attrs...)...)
}
