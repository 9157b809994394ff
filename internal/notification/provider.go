package notification

import "context"

// Provider is an outbound delivery backend.
// Implementations must be safe for concurrent use.
type Provider interface {
	GetName() string
	ValidateConfig() error
	// Accepts reports whether the provider wants this notification.
	Accepts(n *Notification) bool
	Send(ctx context.Context, n *Notification) error
	Close() error
}
