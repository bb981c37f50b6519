package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachment_Decode(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		att := Attachment{Filename: "hello.txt", Content: base64.StdEncoding.EncodeToString([]byte("hello world"))}
		got, err := att.Decode()
		require.NoError(t, err)
		assert.Equal(t, []byte("hello world"), got)
	})

	t.Run("wrapped lines and missing padding", func(t *testing.T) {
		t.Parallel()
		att := Attachment{Filename: "a.bin", Content: "aGVsbG8g\r\nd29ybGQ"}
		got, err := att.Decode()
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(got))
	})

	t.Run("corrupted payload names the file", func(t *testing.T) {
		t.Parallel()
		att := Attachment{Filename: "report.pdf", Content: "%%%not-base64%%%"}
		_, err := att.Decode()
		require.Error(t, err)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "report.pdf", verr.Filename)
		assert.Contains(t, err.Error(), "report.pdf")
	})
}

func TestAttachment_MediaType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		want        string
	}{
		{name: "empty", contentType: "", want: DefaultContentType},
		{name: "blank", contentType: "  ", want: DefaultContentType},
		{name: "plain", contentType: "application/pdf", want: "application/pdf"},
		{name: "canonicalized", contentType: "Text/Plain;Charset=UTF-8", want: "text/plain; charset=UTF-8"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Attachment{Filename: "a", ContentType: tt.contentType}.MediaType()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttachment_MediaTypeRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, ct := range []string{
		"text/plain\r\nX-Injected: yes",
		"text/plain\nBcc: victim@example.com",
		"not a media type",
		"text/",
	} {
		_, err := Attachment{Filename: "evil.txt", ContentType: ct}.MediaType()

		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "content type %q", ct)
		assert.Equal(t, "evil.txt", verr.Filename)
	}
}

func TestCompose_ContentTypeCannotInjectHeaders(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Subject:    "s",
		Body:       "b",
		Recipients: []string{"a@example.com"},
		Attachments: []Attachment{{
			Filename:    "a.txt",
			Content:     base64.StdEncoding.EncodeToString([]byte("hi")),
			ContentType: "text/plain\r\nX-Injected: yes",
		}},
	}

	composed, err := Compose("relay@example.com", msg)
	assert.Nil(t, composed)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a.txt", verr.Filename)
}

func TestCompose_PlainTextWithAttachments(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Subject:    "Quarterly report",
		Body:       "Please find the report attached.",
		Recipients: []string{"a@example.com", "b@example.com"},
		Attachments: []Attachment{
			{Filename: "report.pdf", Content: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")), ContentType: "application/pdf"},
			{Filename: "notes.txt", Content: base64.StdEncoding.EncodeToString([]byte("hello world"))},
		},
	}

	composed, err := Compose("relay@example.com", msg)
	require.NoError(t, err)
	assert.Equal(t, "relay@example.com", composed.From)
	assert.Equal(t, msg.Recipients, composed.Recipients)
	assert.True(t, strings.HasSuffix(composed.MessageID, "@example.com>"))

	env, err := enmime.ReadEnvelope(bytes.NewReader(composed.Raw))
	require.NoError(t, err)

	assert.Equal(t, "relay@example.com", env.GetHeader("From"))
	assert.Equal(t, "a@example.com, b@example.com", env.GetHeader("To"))
	assert.Equal(t, "Quarterly report", env.GetHeader("Subject"))
	assert.Equal(t, composed.MessageID, env.GetHeader("Message-ID"))
	assert.Equal(t, "Please find the report attached.", strings.TrimSpace(env.Text))
	assert.Empty(t, env.HTML)

	require.Len(t, env.Attachments, 2)
	assert.Equal(t, "report.pdf", env.Attachments[0].FileName)
	assert.Equal(t, "application/pdf", env.Attachments[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.4 fake"), env.Attachments[0].Content)
	assert.Equal(t, "notes.txt", env.Attachments[1].FileName)
	assert.Equal(t, DefaultContentType, env.Attachments[1].ContentType)
	assert.Equal(t, []byte("hello world"), env.Attachments[1].Content)

	raw := string(composed.Raw)
	assert.Contains(t, raw, "Content-Disposition: attachment; filename=report.pdf")
	assert.Contains(t, raw, "Content-Type: multipart/mixed")
}

func TestCompose_HTMLBody(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Subject:    "Héllo",
		Body:       "<h1>Hi</h1>",
		Recipients: []string{"a@example.com"},
		IsHTML:     true,
	}

	composed, err := Compose("relay@example.com", msg)
	require.NoError(t, err)

	raw := string(composed.Raw)
	assert.Contains(t, raw, "Content-Type: text/html; charset=utf-8")
	assert.NotContains(t, raw, "text/plain")

	env, err := enmime.ReadEnvelope(bytes.NewReader(composed.Raw))
	require.NoError(t, err)
	assert.Equal(t, "Héllo", env.GetHeader("Subject"))
	assert.Contains(t, env.HTML, "<h1>Hi</h1>")
	assert.Empty(t, env.Attachments)
}

func TestCompose_BadAttachmentFailsFast(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Subject:    "s",
		Body:       "b",
		Recipients: []string{"a@example.com"},
		Attachments: []Attachment{
			{Filename: "ok.txt", Content: base64.StdEncoding.EncodeToString([]byte("ok"))},
			{Filename: "broken.bin", Content: "%%%not-base64%%%"},
		},
	}

	composed, err := Compose("relay@example.com", msg)
	assert.Nil(t, composed)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "broken.bin", verr.Filename)
}

func TestEncodeBase64WithLineBreaks(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("x"), 200)
	encoded := encodeBase64WithLineBreaks(data)

	for _, line := range strings.Split(encoded, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(encoded, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestSenderDomain(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "example.com", senderDomain("relay@example.com"))
	assert.Equal(t, "example.com", senderDomain("Relay <relay@example.com>"))
	assert.Equal(t, "localhost", senderDomain("relay"))
}
