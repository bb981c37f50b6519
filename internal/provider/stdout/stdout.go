// Package stdout implements a Provider that prints emails instead of
// delivering them, for local development and dry runs.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shineum/mail-relay/internal/email"
)

const separator = "========================================\n"

// Provider prints email messages in a human-readable format.
type Provider struct {
	from string

	mu     sync.Mutex
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New(from string) *Provider {
	return NewWithWriter(from, os.Stdout)
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(from string, w io.Writer) *Provider {
	return &Provider{from: from, writer: w}
}

// Send prints the message. Attachments are decoded so a malformed payload
// fails exactly as it would with a real provider.
func (p *Provider) Send(_ context.Context, msg *email.Message) error {
	attachments, err := email.DecodeAttachments(msg)
	if err != nil {
		return err
	}

	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "From: %s\n", p.from)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.IsHTML {
		b.WriteString("Body (html):\n")
	} else {
		b.WriteString("Body:\n")
	}
	b.WriteString(msg.Body + "\n")

	if len(attachments) > 0 {
		names := make([]string, 0, len(attachments))
		for _, att := range attachments {
			names = append(names, fmt.Sprintf("%s (%s, %s)", att.Filename, att.ContentType, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}

	b.WriteString(separator)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
