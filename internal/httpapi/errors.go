package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shineum/mail-relay/internal/access"
	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/provider"
	"github.com/shineum/mail-relay/internal/relay"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Detail any `json:"detail"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeError maps err onto a status code and a detail safe for the caller.
// Unclassified errors are logged and answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verrs  ValidationErrors
		attErr *email.ValidationError
	)

	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "ApiKey")
		writeDetail(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, access.ErrForbidden):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.As(err, &verrs):
		writeDetail(w, http.StatusUnprocessableEntity, verrs)
	case errors.Is(err, relay.ErrNoRecipients):
		writeDetail(w, http.StatusUnprocessableEntity, ValidationErrors{{Field: "recipients", Message: err.Error()}})
	case errors.Is(err, errBodyTooLarge):
		writeDetail(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.As(err, &attErr):
		writeDetail(w, http.StatusBadRequest, attErr.Error())
	case errors.Is(err, provider.ErrTransportAuth):
		writeDetail(w, http.StatusUnauthorized, "mail server authentication failed, check the relay credentials")
	case errors.Is(err, provider.ErrTransportProtocol):
		writeDetail(w, http.StatusBadGateway, "error communicating with the mail server: "+err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "unexpected error", "path", r.URL.Path, "error", err)
		writeDetail(w, http.StatusInternalServerError, "internal server error")
	}
}
