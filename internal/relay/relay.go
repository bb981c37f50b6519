// Package relay runs one send request through the configured provider and
// reports the outcome.
package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/provider"
)

// ErrNoRecipients indicates a message without recipients reached the relay.
var ErrNoRecipients = errors.New("at least one recipient is required")

// Outcome labels for recorded sends.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalid       = "validation_error"
	OutcomeAuthError     = "auth_error"
	OutcomeProtocolError = "protocol_error"
	OutcomeError         = "error"
)

// Recorder observes relay attempts.
type Recorder interface {
	ObserveSend(provider, outcome string, elapsed time.Duration)
}

// SendResult describes an accepted message.
type SendResult struct {
	Recipients []string
	Count      int
	Provider   string
}

// Service sends messages through a single provider.
type Service struct {
	provider provider.Provider
	logger   *slog.Logger
	recorder Recorder
}

// NewService creates a Service. logger and recorder may be nil.
func NewService(p provider.Provider, logger *slog.Logger, recorder Recorder) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{provider: p, logger: logger, recorder: recorder}
}

// ProviderName returns the name of the active provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Send delivers msg in one attempt. Provider errors are returned unchanged so
// callers can classify them with errors.Is and errors.As.
func (s *Service) Send(ctx context.Context, msg *email.Message) (*SendResult, error) {
	if msg == nil || len(msg.Recipients) == 0 {
		s.observe(OutcomeInvalid, 0)
		return nil, ErrNoRecipients
	}

	start := time.Now()
	err := s.provider.Send(ctx, msg)
	elapsed := time.Since(start)

	outcome := Outcome(err)
	s.observe(outcome, elapsed)

	if err != nil {
		attrs := []any{
			"provider", s.provider.Name(),
			"outcome", outcome,
			"recipients", len(msg.Recipients),
			"error", err,
		}
		var verr *email.ValidationError
		if errors.As(err, &verr) {
			attrs = append(attrs, "filename", verr.Filename)
		}
		s.logger.WarnContext(ctx, "email relay failed", attrs...)
		return nil, err
	}

	s.logger.InfoContext(ctx, "email relayed",
		"provider", s.provider.Name(),
		"recipients", len(msg.Recipients),
		"attachments", len(msg.Attachments),
		"duration_ms", elapsed.Milliseconds(),
	)

	return &SendResult{
		Recipients: append([]string(nil), msg.Recipients...),
		Count:      len(msg.Recipients),
		Provider:   s.provider.Name(),
	}, nil
}

func (s *Service) observe(outcome string, elapsed time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveSend(s.provider.Name(), outcome, elapsed)
	}
}

// Outcome classifies a send error into a metric label.
func Outcome(err error) string {
	var verr *email.ValidationError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &verr), errors.Is(err, ErrNoRecipients):
		return OutcomeInvalid
	case errors.Is(err, provider.ErrTransportAuth):
		return OutcomeAuthError
	case errors.Is(err, provider.ErrTransportProtocol):
		return OutcomeProtocolError
	default:
		return OutcomeError
	}
}
