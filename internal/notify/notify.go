// Package notify hands password-reset notices to whatever delivers e-mail.
//
// The catalog never sends mail itself. It publishes a ResetNotice and a
// separate mail worker turns it into a message containing the reset link.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// ResetNotice carries everything the mail worker needs. Token is the secret
// the user will paste back, so notices must only travel over trusted links.
type ResetNotice struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ResetNotifier interface {
	NotifyReset(ctx context.Context, n ResetNotice) error
}

// LogNotifier writes notices to the log. It is used when no broker is
// configured; the token itself only appears at debug level.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) NotifyReset(ctx context.Context, n ResetNotice) error {
	l.logger.InfoContext(ctx, "password reset requested",
		slog.Int64("userID", n.UserID),
		slog.String("email", n.Email),
		slog.Time("expiresAt", n.ExpiresAt),
	)
	l.logger.DebugContext(ctx, "password reset token", slog.String("token", n.Token))
	return nil
}
