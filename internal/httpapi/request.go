package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shineum/mail-relay/internal/email"
)

// errBodyTooLarge indicates the request body exceeded the configured limit.
var errBodyTooLarge = errors.New("request body too large")

// SendEmailRequest is the JSON body of POST /send-email.
type SendEmailRequest struct {
	Subject     string              `json:"subject" validate:"required,max=500"`
	Body        string              `json:"body" validate:"required"`
	Recipients  []string            `json:"recipients" validate:"required,min=1,dive,email"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,dive"`
	IsHTML      bool                `json:"is_html"`
}

// AttachmentRequest is one attachment of a SendEmailRequest.
type AttachmentRequest struct {
	Filename    string `json:"filename" validate:"required"`
	Content     string `json:"content" validate:"required"`
	ContentType string `json:"content_type,omitempty"`
}

// Message converts the request into the relay model.
func (r *SendEmailRequest) Message() *email.Message {
	msg := &email.Message{
		Subject:    r.Subject,
		Body:       r.Body,
		Recipients: append([]string(nil), r.Recipients...),
		IsHTML:     r.IsHTML,
	}
	for _, a := range r.Attachments {
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}
	return msg
}

// FieldError describes one schema violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the set of schema violations of a request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeSendRequest reads and validates the request body, bounded by limit.
func decodeSendRequest(w http.ResponseWriter, r *http.Request, limit int64) (*SendEmailRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, decodeError(err)
	}

	if err := validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, translate(verrs)
		}
		return nil, fmt.Errorf("validate request: %w", err)
	}
	return &req, nil
}

func decodeError(err error) error {
	var (
		maxErr  *http.MaxBytesError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &maxErr):
		return errBodyTooLarge
	case errors.As(err, &typeErr):
		return ValidationErrors{{Field: typeErr.Field, Message: "expected " + typeErr.Type.String()}}
	case errors.Is(err, io.EOF):
		return ValidationErrors{{Field: "request", Message: "request body is required"}}
	default:
		return ValidationErrors{{Field: "request", Message: "invalid JSON: " + err.Error()}}
	}
}

func translate(verrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fieldPath(fe), Message: fieldMessage(fe)})
	}
	return out
}

// fieldPath drops the struct name from the namespace: "recipients[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	isList := fe.Kind() == reflect.Slice
	switch fe.Tag() {
	case "required":
		return "field required"
	case "min":
		if isList {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("must contain at most %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "value is not a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
