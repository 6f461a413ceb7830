// Package mailer delivers sign-in codes.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Mailer sends a verification code to an email address.
type Mailer interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// Log writes codes to the log instead of sending mail. It is the default
// until an SMTP transport is configured, and is what development runs use.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (m *Log) SendCode(_ context.Context, email, code string, ttl time.Duration) error {
	m.logger.Info("verification code issued",
		slog.String("email", email),
		slog.String("code", code),
		slog.Duration("ttl", ttl),
	)
	m.logger.Debug("verification mail body", slog.String("to", email), slog.String("body", Body(code, ttl)))
	return nil
}

// Body renders the plain-text message for a code.
func Body(code string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Your Sanctuary verification code is: %s\n\nThis code expires in %s.\n\nIf you didn't request this, please ignore this email.",
		code, humanize(ttl),
	)
}

func humanize(d time.Duration) string {
	if m := int(d.Minutes()); m > 0 && d == time.Duration(m)*time.Minute {
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
