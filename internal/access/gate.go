package access

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

var (
	// ErrUnauthenticated indicates a missing or invalid API key.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the client IP is not on the allowlist.
	ErrForbidden = errors.New("forbidden")
)

// Reasons reported in Result.Reason.
const (
	ReasonAuthDisabled   = "auth disabled"
	ReasonMissingKey     = "missing api key"
	ReasonInvalidKey     = "invalid api key"
	ReasonOpenMode       = "allowlist empty"
	ReasonPrivateNetwork = "private network trusted via localhost"
	ReasonAllowlisted    = "allowlisted"
	ReasonNotAllowlisted = "ip not allowlisted"
)

// privatePrefixes are trusted when LocalhostIP is allowlisted, so callers
// behind container bridge networking keep working.
var privatePrefixes = []string{"172.", "192.168.", "10."}

// Denial is the error of a refused request. Its message is safe to return
// to the caller and never contains the presented key.
type Denial struct {
	kind error
	msg  string
}

func (d *Denial) Error() string {
	return d.msg
}

// Unwrap returns ErrUnauthenticated or ErrForbidden.
func (d *Denial) Unwrap() error {
	return d.kind
}

// Result is the outcome of a single authorization decision.
type Result struct {
	Err      error
	Reason   string
	ClientIP string
	Allowed  bool
}

// Recorder observes gate decisions. Implemented by the metrics package.
type Recorder interface {
	ObserveDecision(allowed bool, reason string)
}

// Config holds the immutable inputs of a Gate.
type Config struct {
	APIKey    string
	Allowlist Allowlist
	Logger    *slog.Logger
	Recorder  Recorder
}

// Gate combines API-key verification with client IP allowlisting.
// It is safe for concurrent use; nothing is mutated after construction.
type Gate struct {
	keys      *KeyVerifier
	allowlist Allowlist
	logger    *slog.Logger
	recorder  Recorder
}

// NewGate creates a Gate from the given configuration.
func NewGate(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{
		keys:      NewKeyVerifier(cfg.APIKey),
		allowlist: cfg.Allowlist,
		logger:    logger,
		recorder:  cfg.Recorder,
	}
}

// AuthEnabled reports whether an API key is configured.
func (g *Gate) AuthEnabled() bool {
	return g.keys.Enabled()
}

// Allowlist returns the configured allowlist.
func (g *Gate) Allowlist() Allowlist {
	return g.allowlist
}

// Authorize decides whether r may reach a protected route.
func (g *Gate) Authorize(r *http.Request) Result {
	return g.CheckContext(r.Context(), r.Header.Get(HeaderAPIKey), ClientIP(r))
}

// Check runs the gate against an already extracted key and client IP.
func (g *Gate) Check(presentedKey, clientIP string) Result {
	return g.CheckContext(context.Background(), presentedKey, clientIP)
}

// CheckContext is Check with a context for request-scoped logging.
// Without a configured API key every caller is admitted; otherwise the key is
// checked before the IP so a key failure never reveals IP policy.
func (g *Gate) CheckContext(ctx context.Context, presentedKey, clientIP string) Result {
	if !g.keys.Enabled() {
		g.logger.WarnContext(ctx, "no API key configured, authentication is disabled", "client_ip", clientIP)
		return g.allow(ctx, clientIP, ReasonAuthDisabled)
	}
	if presentedKey == "" {
		return g.deny(ctx, clientIP, ReasonMissingKey, &Denial{
			kind: ErrUnauthenticated,
			msg:  fmt.Sprintf("API key required in the %s header", HeaderAPIKey),
		})
	}
	if !g.keys.Verify(presentedKey) {
		return g.deny(ctx, clientIP, ReasonInvalidKey, &Denial{
			kind: ErrUnauthenticated,
			msg:  "invalid API key",
		})
	}

	if g.allowlist.Empty() {
		g.logger.WarnContext(ctx, "no allowed IPs configured, allowing all addresses", "client_ip", clientIP)
		return g.allow(ctx, clientIP, ReasonOpenMode)
	}

	if g.allowlist.Contains(LocalhostIP) && isPrivate(clientIP) {
		return g.allow(ctx, clientIP, ReasonPrivateNetwork)
	}

	if g.allowlist.IsAllowed(clientIP, g.logger) {
		return g.allow(ctx, clientIP, ReasonAllowlisted)
	}

	return g.deny(ctx, clientIP, ReasonNotAllowlisted, &Denial{
		kind: ErrForbidden,
		msg:  fmt.Sprintf("access denied, your IP (%s) is not in the list of allowed IPs", clientIP),
	})
}

func (g *Gate) allow(ctx context.Context, clientIP, reason string) Result {
	g.logger.InfoContext(ctx, "access granted", "client_ip", clientIP, "reason", reason)
	g.observe(true, reason)
	return Result{Allowed: true, Reason: reason, ClientIP: clientIP}
}

func (g *Gate) deny(ctx context.Context, clientIP, reason string, err error) Result {
	g.logger.WarnContext(ctx, "access denied", "client_ip", clientIP, "reason", reason)
	g.observe(false, reason)
	return Result{Allowed: false, Reason: reason, ClientIP: clientIP, Err: err}
}

func (g *Gate) observe(allowed bool, reason string) {
	if g.recorder != nil {
		g.recorder.ObserveDecision(allowed, reason)
	}
}

func isPrivate(ip string) bool {
	for _, p := range privatePrefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}
