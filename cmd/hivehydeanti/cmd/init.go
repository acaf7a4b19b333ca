package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hivehydeanti"
	"hivehydeanti/internal/config"
	"hivehydeanti/internal/dataloom/staticdriver"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Fetch the first session key/token and print the resolved collector policy.",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()

			m, err := hivehydeanti.New(config.Config{ApiBaseUrl: apiBaseURL})
			if err != nil {
				return fmt.Errorf("wiring module: %w", err)
			}
			if err := m.Initialize(ctx); err != nil {
				return fmt.Errorf("initializing: %w", err)
			}

			fmt.Fprintln(c.OutOrStdout(), m.String())
			fmt.Fprintf(c.OutOrStdout(), "host platform: %s\n", staticdriver.Platform())
			fmt.Fprintf(c.OutOrStdout(), "token: %s\n", m.Vault().GetCurrentToken())
			return nil
		},
	}
}
