// Package provider defines the interface for email delivery backends.
package provider

import (
	"context"
	"errors"

	"github.com/shineum/mail-relay/internal/email"
)

var (
	// ErrTransportAuth indicates the upstream rejected the relay's credentials.
	ErrTransportAuth = errors.New("upstream authentication failed")

	// ErrTransportProtocol indicates any other failure talking to the upstream.
	ErrTransportProtocol = errors.New("upstream delivery failed")
)

// Provider is the interface that email delivery backends must implement.
// Each provider composes the message, makes one delivery attempt and maps
// upstream failures onto ErrTransportAuth or ErrTransportProtocol.
// Attachment decoding errors are returned as *email.ValidationError before
// any network activity.
type Provider interface {
	// Send delivers an email message through this provider.
	Send(ctx context.Context, msg *email.Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}
