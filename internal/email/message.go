// Package email defines the mail message model relayed by the API and the
// MIME composition shared by every delivery provider.
package email

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// DefaultContentType is used for attachments that do not declare a MIME type.
const DefaultContentType = "application/octet-stream"

// Message is a validated send request, consumed once by a provider.
type Message struct {
	Subject     string
	Body        string
	Recipients  []string
	Attachments []Attachment
	IsHTML      bool
}

// Attachment is a file carried as base64 text in the request.
type Attachment struct {
	Filename    string
	Content     string
	ContentType string
}

// ValidationError reports client input that cannot be relayed.
type ValidationError struct {
	Filename string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid attachment %s: %v", e.Filename, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MediaType returns the declared content type, re-rendered in canonical form,
// or DefaultContentType when none is declared. Values that do not parse as a
// media type are rejected so they never reach a MIME header verbatim.
func (a Attachment) MediaType() (string, error) {
	ct := strings.TrimSpace(a.ContentType)
	if ct == "" {
		return DefaultContentType, nil
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", &ValidationError{Filename: a.Filename, Err: fmt.Errorf("invalid content type: %w", err)}
	}
	formatted := mime.FormatMediaType(mediaType, params)
	if formatted == "" {
		return "", &ValidationError{Filename: a.Filename, Err: fmt.Errorf("invalid content type %q", mediaType)}
	}
	return formatted, nil
}

// Decode returns the raw bytes of the attachment. Line breaks and spaces in
// the payload are ignored; unpadded base64 is accepted.
func (a Attachment) Decode() ([]byte, error) {
	cleaned := strings.NewReplacer("\r", "", "\n", "", " ", "", "\t", "").Replace(a.Content)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, &ValidationError{Filename: a.Filename, Err: err}
		}
	}
	return decoded, nil
}

// DecodedAttachment is an attachment whose payload has been decoded.
type DecodedAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// DecodeAttachments decodes every attachment of msg, failing on the first
// malformed payload.
func DecodeAttachments(msg *Message) ([]DecodedAttachment, error) {
	if len(msg.Attachments) == 0 {
		return nil, nil
	}
	out := make([]DecodedAttachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		contentType, err := att.MediaType()
		if err != nil {
			return nil, err
		}
		content, err := att.Decode()
		if err != nil {
			return nil, err
		}
		out = append(out, DecodedAttachment{
			Filename:    att.Filename,
			ContentType: contentType,
			Content:     content,
		})
	}
	return out, nil
}
