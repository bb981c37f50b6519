// Package httpapi serves the mail relay over HTTP: the send endpoint, health
// and info routes, the API documentation and metrics.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shineum/mail-relay/internal/access"
	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/relay"
)

// DefaultMaxBodyBytes caps the send request body when no limit is configured.
const DefaultMaxBodyBytes = 25 << 20

// protectedPrefixes are gated like /send-email.
var protectedPrefixes = []string{"/docs", "/redoc", "/openapi.json", "/metrics"}

// Sender relays one message. Implemented by relay.Service.
type Sender interface {
	Send(ctx context.Context, msg *email.Message) (*relay.SendResult, error)
	ProviderName() string
}

// HealthInfo is the static configuration summary reported by /health.
type HealthInfo struct {
	SMTPServer     string
	SMTPPort       int
	SMTPFromEmail  string
	SMTPConfigured bool
	// Missing lists the unset settings of the active provider.
	Missing []string
}

// Options configures a Server.
type Options struct {
	Gate         *access.Gate
	Sender       Sender
	Health       HealthInfo
	Metrics      http.Handler
	MaxBodyBytes int64
	Version      string
	Logger       *slog.Logger
}

// Server holds the handlers of the API.
type Server struct {
	gate         *access.Gate
	sender       Sender
	health       HealthInfo
	metrics      http.Handler
	maxBodyBytes int64
	version      string
	logger       *slog.Logger
}

// New creates a Server. Gate and Sender are required.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &Server{
		gate:         opts.Gate,
		sender:       opts.Sender,
		health:       opts.Health,
		metrics:      opts.Metrics,
		maxBodyBytes: maxBody,
		version:      opts.Version,
		logger:       logger,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.protectPrefixes(protectedPrefixes...))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.With(s.requireAccess).Post("/send-email", s.handleSendEmail)

	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/docs", s.handleSwaggerUI)
	r.Get("/redoc", s.handleReDoc)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

// requireAccess rejects requests the gate does not allow.
func (s *Server) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := s.gate.Authorize(r)
		if !res.Allowed {
			s.writeError(w, r, res.Err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// protectPrefixes applies the gate to every path starting with one of
// prefixes, before routing.
func (s *Server) protectPrefixes(prefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		guarded := s.requireAccess(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range prefixes {
				if strings.HasPrefix(r.URL.Path, p) {
					guarded.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// logRequests writes one access log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"client_ip", access.ClientIP(r),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
