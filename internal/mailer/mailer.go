// Package mailer sends transactional email for account flows. Mail delivery
// is best-effort: callers log failures and carry on, so a broken SMTP relay
// never blocks registration or password reset.
package mailer

import (
	"context"
	"log/slog"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender defines the interface for delivering email.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// LogSender is a sender that only logs, used in development and tests.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender that logs instead of delivering.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the name of this sender.
func (s *LogSender) Name() string {
	return "log"
}

// Send logs the message details and succeeds.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	s.logger.InfoContext(ctx, "log sender: email suppressed",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
