package messaging

import (
	"context"
	"log/slog"
)

// NoopService drops outbound messages. It is used when Twilio credentials are
// not configured: sends are logged and swallowed, never raised.
type NoopService struct{}

// NewNoopService creates a NoopService.
func NewNoopService() *NoopService {
	return &NoopService{}
}

// ValidateAndCanonicalizeRecipient passes the recipient through unchanged.
func (s *NoopService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

// SendMessage logs a warning and drops the message.
func (s *NoopService) SendMessage(ctx context.Context, to string, body string) error {
	slog.Warn("Twilio env not fully set; skipping outbound send", "to", to)
	return nil
}

// Configured reports false.
func (s *NoopService) Configured() bool {
	return false
}

// Stop is a no-op.
func (s *NoopService) Stop() error {
	return nil
}
