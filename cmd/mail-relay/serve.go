package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shineum/mail-relay/internal/access"
	"github.com/shineum/mail-relay/internal/config"
	"github.com/shineum/mail-relay/internal/httpapi"
	"github.com/shineum/mail-relay/internal/logger"
	"github.com/shineum/mail-relay/internal/metrics"
	"github.com/shineum/mail-relay/internal/provider"
	"github.com/shineum/mail-relay/internal/provider/ses"
	"github.com/shineum/mail-relay/internal/provider/smtp"
	"github.com/shineum/mail-relay/internal/provider/stdout"
	"github.com/shineum/mail-relay/internal/relay"
	apitls "github.com/shineum/mail-relay/internal/tls"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format, logger.RequestID())
	slog.SetDefault(log)

	m := metrics.New()
	gate := newGate(cfg, log, m)

	prov, err := selectProvider(ctx, cfg, log)
	if err != nil {
		return err
	}
	svc := relay.NewService(prov, log, m)

	missing := cfg.MissingForProvider()
	if len(missing) > 0 {
		log.Warn("mail provider is not fully configured", "provider", prov.Name(), "missing", missing)
	}

	api := httpapi.New(httpapi.Options{
		Gate:   gate,
		Sender: svc,
		Health: httpapi.HealthInfo{
			SMTPServer:     cfg.SMTP.Server,
			SMTPPort:       cfg.SMTP.Port,
			SMTPFromEmail:  cfg.SMTP.FromEmail,
			SMTPConfigured: cfg.SMTPConfigured(),
			Missing:        missing,
		},
		Metrics:      m.Handler(),
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		Version:      version,
		Logger:       log,
	})

	tlsConfig, err := apitls.ServerConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.SelfSigned)
	if err != nil {
		return fmt.Errorf("failed to setup TLS: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           api.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Sends block for up to the SMTP timeout.
		WriteTimeout: cfg.SMTP.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	log.Info("starting mail-relay",
		"version", version,
		"listen", cfg.HTTP.Listen,
		"provider", prov.Name(),
		"auth_enabled", cfg.AuthEnabled(),
		"allowed_ips", len(cfg.Security.AllowedIPs),
		"tls", tlsConfig != nil,
	)
	if !cfg.AuthEnabled() {
		log.Warn("API_KEY is not set, protected endpoints are open to every caller")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if tlsConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("received signal, initiating shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("mail-relay stopped")
	return nil
}

func newGate(cfg *config.Config, log *slog.Logger, rec access.Recorder) *access.Gate {
	return access.NewGate(access.Config{
		APIKey:    cfg.Security.APIKey,
		Allowlist: access.NewAllowlist(cfg.Security.AllowedIPs...),
		Logger:    log,
		Recorder:  rec,
	})
}

// selectProvider builds the delivery backend named by cfg.Provider.
func selectProvider(ctx context.Context, cfg *config.Config, log *slog.Logger) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderSES:
		log.Info("using AWS SES provider", "region", cfg.SES.Region, "sender", cfg.SES.Sender)
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			Sender:          cfg.SES.Sender,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case config.ProviderStdout:
		log.Info("using stdout provider")
		return stdout.New(cfg.SMTP.FromEmail), nil

	case config.ProviderSMTP:
		log.Info("using SMTP provider",
			"server", cfg.SMTP.Server,
			"port", cfg.SMTP.Port,
			"starttls", cfg.SMTP.TLSEnabled(),
		)
		return smtp.New(smtp.Config{
			Host:     cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.FromEmail,
			UseTLS:   cfg.SMTP.TLSEnabled(),
			Timeout:  cfg.SMTP.Timeout,
		}), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
