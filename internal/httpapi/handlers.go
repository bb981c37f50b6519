package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

type rootResponse struct {
	Message     string `json:"message"`
	Version     string `json:"version"`
	Docs        string `json:"docs"`
	Description string `json:"description"`
	Note        string `json:"note"`
}

type securityStatus struct {
	APIKeyConfigured   bool `json:"api_key_configured"`
	IPWhitelistEnabled bool `json:"ip_whitelist_enabled"`
	AllowedIPsCount    int  `json:"allowed_ips_count"`
}

type healthResponse struct {
	Status         string         `json:"status"`
	Provider       string         `json:"provider"`
	SMTPServer     string         `json:"smtp_server"`
	SMTPPort       int            `json:"smtp_port"`
	SMTPFromEmail  string         `json:"smtp_from_email"`
	SMTPConfigured bool           `json:"smtp_configured"`
	Security       securityStatus `json:"security"`
}

type sendEmailResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Timestamp  string   `json:"timestamp"`
	Recipients []string `json:"recipients"`
	Provider   string   `json:"provider"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Message:     "mail-relay API",
		Version:     s.version,
		Docs:        "/docs",
		Description: "HTTP API that relays email through an SMTP server",
		Note:        "protected endpoints require an API key and an allowed client IP",
	})
}

// handleHealth is unauthenticated so orchestrator health checks need no credentials.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if len(s.health.Missing) > 0 {
		writeDetail(w, http.StatusServiceUnavailable,
			"incomplete configuration, missing: "+strings.Join(s.health.Missing, ", "))
		return
	}

	allowlist := s.gate.Allowlist()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "healthy",
		Provider:       s.sender.ProviderName(),
		SMTPServer:     s.health.SMTPServer,
		SMTPPort:       s.health.SMTPPort,
		SMTPFromEmail:  s.health.SMTPFromEmail,
		SMTPConfigured: s.health.SMTPConfigured,
		Security: securityStatus{
			APIKeyConfigured:   s.gate.AuthEnabled(),
			IPWhitelistEnabled: !allowlist.Empty(),
			AllowedIPsCount:    allowlist.Len(),
		},
	})
}

// handleSendEmail runs behind requireAccess, so the body is only read for
// admitted callers.
func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSendRequest(w, r, s.maxBodyBytes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.sender.Send(r.Context(), req.Message())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sendEmailResponse{
		Success:    true,
		Message:    fmt.Sprintf("email sent to %d recipient(s)", res.Count),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Recipients: res.Recipients,
		Provider:   res.Provider,
	})
}
