package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Composed is a message rendered to RFC 5322 bytes together with its envelope.
type Composed struct {
	From       string
	Recipients []string
	MessageID  string
	Raw        []byte
}

// Compose renders msg as a multipart/mixed message sent by from.
// Attachments are decoded first, so malformed payloads fail before any
// provider touches the network.
func Compose(from string, msg *Message) (*Composed, error) {
	attachments, err := DecodeAttachments(msg)
	if err != nil {
		return nil, err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(from))

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	subtype := "plain"
	if msg.IsHTML {
		subtype = "html"
	}
	bodyHeader := make(textproto.MIMEHeader)
	bodyHeader.Set("Content-Type", fmt.Sprintf("text/%s; charset=utf-8", subtype))
	bodyHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	part, err := writer.CreatePart(bodyHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("failed to write body part: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write body part: %w", err)
	}

	for _, att := range attachments {
		attHeader := make(textproto.MIMEHeader)
		attHeader.Set("Content-Type", att.ContentType)
		attHeader.Set("Content-Transfer-Encoding", "base64")
		attHeader.Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}))

		part, err := writer.CreatePart(attHeader)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
		if _, err := part.Write([]byte(encodeBase64WithLineBreaks(att.Content))); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", att.Filename, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return &Composed{
		From:       from,
		Recipients: append([]string(nil), msg.Recipients...),
		MessageID:  messageID,
		Raw:        buf.Bytes(),
	}, nil
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}

func senderDomain(from string) string {
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return strings.Trim(from[at+1:], "> ")
	}
	return "localhost"
}
