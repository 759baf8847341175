// Package messaging provides the outbound message delivery abstraction for GapBot.
package messaging

import (
	"context"
	"errors"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	// Returns the canonicalized recipient and an error if validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient. Best effort: callers on the
	// reminder path log and continue on failure.
	SendMessage(ctx context.Context, to string, body string) error

	// Configured reports whether the service has working transport credentials.
	Configured() bool

	// Stop stops the service and cleans up resources.
	Stop() error
}
