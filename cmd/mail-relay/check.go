package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

var errAccessDenied = errors.New("access denied")

func newCheckAccessCmd(opts *rootOptions) *cobra.Command {
	var ip, key string

	cmd := &cobra.Command{
		Use:   "check-access",
		Short: "Run the access gate against the loaded configuration",
		Long: `check-access evaluates the API key and client IP the same way the
API does for protected endpoints, and exits non-zero when access would
be denied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			gate := newGate(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
			res := gate.Check(key, ip)

			out := cmd.OutOrStdout()
			if res.Allowed {
				fmt.Fprintf(out, "allowed: %s (%s)\n", res.ClientIP, res.Reason)
				return nil
			}
			fmt.Fprintf(out, "denied: %s (%s): %v\n", res.ClientIP, res.Reason, res.Err)
			return errAccessDenied
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "client IP to check")
	cmd.Flags().StringVar(&key, "key", "", "API key to present")
	_ = cmd.MarkFlagRequired("ip")

	return cmd
}
