package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shineum/mail-relay/internal/config"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "mail-relay",
		Short: "HTTP API that relays email through an upstream mail server",
		Long: `mail-relay accepts JSON send requests over HTTP, checks the caller's
API key and client IP, and relays the message through SMTP, AWS SES
or stdout.

Example:
  mail-relay                          # serve with environment configuration
  mail-relay serve --config relay.yaml
  mail-relay check-access --ip 10.0.0.7 --key "$API_KEY"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file (optional)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file (default is .env when present)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCheckAccessCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mail-relay %s\n", version)
		},
	}
}

// loadConfig applies the .env file, then reads the YAML file (if any) with
// environment overrides, and validates the result.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, err
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.configFile != "" {
		cfg, err = config.LoadFromFile(opts.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
