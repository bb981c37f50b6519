// Package smtp implements a Provider that relays messages through an
// authenticated SMTP server over implicit TLS, STARTTLS or plain TCP.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/provider"
)

// ImplicitTLSPort is the submission port that speaks TLS from the first byte.
const ImplicitTLSPort = 465

// DefaultTimeout bounds a whole relay exchange when none is configured.
const DefaultTimeout = 30 * time.Second

// Transport is the connection mode used to reach the relay.
type Transport int

const (
	// TransportPlain is an unencrypted connection.
	TransportPlain Transport = iota
	// TransportSTARTTLS starts in plaintext and upgrades with STARTTLS.
	TransportSTARTTLS
	// TransportImplicitTLS wraps the connection in TLS before the greeting.
	TransportImplicitTLS
)

func (t Transport) String() string {
	switch t {
	case TransportSTARTTLS:
		return "starttls"
	case TransportImplicitTLS:
		return "tls"
	default:
		return "plain"
	}
}

// SelectTransport picks the connection mode for a relay port. Port 465 always
// uses implicit TLS; any other port is plain, upgraded via STARTTLS when
// useTLS is set.
func SelectTransport(port int, useTLS bool) Transport {
	if port == ImplicitTLSPort {
		return TransportImplicitTLS
	}
	if useTLS {
		return TransportSTARTTLS
	}
	return TransportPlain
}

// Config holds the configuration for creating a Provider.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration

	// TLSConfig overrides the client TLS settings (private CAs, tests).
	// ServerName defaults to Host.
	TLSConfig *tls.Config
}

// Provider relays messages through an SMTP server.
type Provider struct {
	cfg       Config
	transport Transport
	tlsConfig *tls.Config
}

// New creates a new SMTP Provider with the given configuration.
func New(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = cfg.Host
	}

	return &Provider{
		cfg:       cfg,
		transport: SelectTransport(cfg.Port, cfg.UseTLS),
		tlsConfig: tlsConfig,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "smtp"
}

// Transport returns the connection mode selected for the configured port.
func (p *Provider) Transport() Transport {
	return p.transport
}

// Addr returns the relay address as host:port.
func (p *Provider) Addr() string {
	return net.JoinHostPort(p.cfg.Host, strconv.Itoa(p.cfg.Port))
}

// Send composes msg and makes a single delivery attempt. The whole exchange
// is bounded by the configured timeout.
func (p *Provider) Send(ctx context.Context, msg *email.Message) error {
	composed, err := email.Compose(p.cfg.From, msg)
	if err != nil {
		return err
	}

	// An empty host would dial the local system.
	if missing := p.missingSettings(); len(missing) > 0 {
		return fmt.Errorf("%w: relay not configured: missing %s",
			provider.ErrTransportProtocol, strings.Join(missing, ", "))
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	slog.DebugContext(ctx, "connecting to relay", "addr", p.Addr(), "transport", p.transport.String())

	client, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %w", provider.ErrTransportProtocol, p.Addr(), err)
	}
	defer client.Close()

	if p.cfg.Username != "" {
		auth := sasl.NewPlainClient("", p.cfg.Username, p.cfg.Password)
		if err := client.Auth(auth); err != nil {
			if isAuthRejection(err) {
				return fmt.Errorf("%w: %w", provider.ErrTransportAuth, err)
			}
			return fmt.Errorf("%w: auth: %w", provider.ErrTransportProtocol, err)
		}
	}

	if err := client.SendMail(composed.From, composed.Recipients, bytes.NewReader(composed.Raw)); err != nil {
		return fmt.Errorf("%w: send: %w", provider.ErrTransportProtocol, err)
	}

	// The message is already accepted at this point.
	if err := client.Quit(); err != nil {
		slog.WarnContext(ctx, "relay quit error (message already accepted)", "error", err)
	}

	slog.DebugContext(ctx, "relay accepted message",
		"message_id", composed.MessageID,
		"recipients", len(composed.Recipients),
	)
	return nil
}

// missingSettings lists the settings without which no delivery is attempted.
func (p *Provider) missingSettings() []string {
	var missing []string
	if strings.TrimSpace(p.cfg.Host) == "" {
		missing = append(missing, "host")
	}
	if p.cfg.Port <= 0 {
		missing = append(missing, "port")
	}
	if p.cfg.From == "" {
		missing = append(missing, "sender")
	}
	return missing
}

// dial opens the connection for the selected transport. The connection is
// closed when ctx ends so a stalled relay cannot hold the request.
func (p *Provider) dial(ctx context.Context) (*gosmtp.Client, error) {
	dialer := &net.Dialer{}

	var (
		conn net.Conn
		err  error
	)
	if p.transport == TransportImplicitTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: p.tlsConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", p.Addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.Addr())
	}
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	context.AfterFunc(ctx, func() { _ = conn.Close() })

	if p.transport == TransportSTARTTLS {
		client, err := gosmtp.NewClientStartTLS(conn, p.tlsConfig)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
		return client, nil
	}
	return gosmtp.NewClient(conn), nil
}

// isAuthRejection reports whether err is the server refusing credentials.
func isAuthRejection(err error) bool {
	var smtpErr *gosmtp.SMTPError
	if !errors.As(err, &smtpErr) {
		return false
	}
	switch smtpErr.Code {
	case 530, 534, 535:
		return true
	}
	return false
}
