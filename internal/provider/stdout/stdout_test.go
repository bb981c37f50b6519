package stdout

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/shineum/mail-relay/internal/email"
)

func TestSend_BasicEmail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter("sender@example.com", &buf)

	msg := &email.Message{
		Subject:    "Monthly Report",
		Body:       "Please find the report attached.",
		Recipients: []string{"alice@example.com", "bob@example.com"},
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "From: sender@example.com") {
		t.Error("output missing From header")
	}
	if !strings.Contains(output, "To: alice@example.com, bob@example.com") {
		t.Error("output missing To header")
	}
	if !strings.Contains(output, "Subject: Monthly Report") {
		t.Error("output missing Subject header")
	}
	if !strings.Contains(output, "Body:\nPlease find the report attached.") {
		t.Error("output missing body text")
	}
	if strings.Contains(output, "Attachments:") {
		t.Error("output should not contain Attachments line when there are none")
	}
	if !strings.HasPrefix(output, separator) {
		t.Error("output should start with separator line")
	}
	if !strings.HasSuffix(output, separator) {
		t.Error("output should end with separator line")
	}
}

func TestSend_HTMLBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter("sender@example.com", &buf)

	msg := &email.Message{
		Subject:    "HTML Only",
		Body:       "<p>HTML content</p>",
		Recipients: []string{"recipient@example.com"},
		IsHTML:     true,
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Body (html):\n<p>HTML content</p>") {
		t.Errorf("output should label the HTML body, got:\n%s", buf.String())
	}
}

func TestSend_WithAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter("sender@example.com", &buf)

	msg := &email.Message{
		Subject:    "Monthly Report",
		Body:       "Please find the report attached.",
		Recipients: []string{"alice@example.com"},
		Attachments: []email.Attachment{
			{
				Filename:    "report.pdf",
				ContentType: "application/pdf",
				Content:     base64.StdEncoding.EncodeToString(make([]byte, 1258291)),
			},
			{
				Filename: "summary.bin",
				Content:  base64.StdEncoding.EncodeToString(make([]byte, 46080)),
			},
		},
	}

	if err := p.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "report.pdf (application/pdf, 1.2 MB)") {
		t.Errorf("output missing report.pdf attachment, got:\n%s", output)
	}
	if !strings.Contains(output, "summary.bin (application/octet-stream, 45.0 KB)") {
		t.Errorf("output missing summary.bin attachment, got:\n%s", output)
	}
}

func TestSend_BadAttachment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := NewWithWriter("sender@example.com", &buf)

	msg := &email.Message{
		Subject:     "s",
		Body:        "b",
		Recipients:  []string{"a@example.com"},
		Attachments: []email.Attachment{{Filename: "broken.txt", Content: "not base64!"}},
	}

	err := p.Send(context.Background(), msg)
	var verr *email.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Filename != "broken.txt" {
		t.Errorf("Filename: got %q, want %q", verr.Filename, "broken.txt")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be printed for a rejected message")
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	p := New("sender@example.com")
	if p.Name() != "stdout" {
		t.Errorf("Name: got %q, want %q", p.Name(), "stdout")
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int
		want  string
	}{
		{name: "zero bytes", bytes: 0, want: "0 B"},
		{name: "small bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 46080, want: "45.0 KB"},
		{name: "megabytes", bytes: 1258291, want: "1.2 MB"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("formatSize(%d): got %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
