package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hivehydeanti"
	"hivehydeanti/internal/config"
)

var (
	signMethod string
	signPath   string
	signParams string
)

func newSignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Initialize a fresh module and sign one request, printing the resulting header bundle as JSON.",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()

			params := map[string]interface{}{}
			if signParams != "" {
				if err := json.Unmarshal([]byte(signParams), &params); err != nil {
					return fmt.Errorf("--params must be a JSON object: %w", err)
				}
			}

			m, err := hivehydeanti.New(config.Config{ApiBaseUrl: apiBaseURL})
			if err != nil {
				return fmt.Errorf("wiring module: %w", err)
			}
			if err := m.Initialize(ctx); err != nil {
				return fmt.Errorf("initializing: %w", err)
			}

			pkg, err := m.ProcessRequest(ctx, signMethod, signPath, params)
			if err != nil {
				return fmt.Errorf("signing: %w", err)
			}

			enc := json.NewEncoder(c.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pkg)
		},
	}

	cmd.Flags().StringVar(&signMethod, "method", "GET", "HTTP method of the request to sign.")
	cmd.Flags().StringVar(&signPath, "path", "/", "Request path to sign.")
	cmd.Flags().StringVar(&signParams, "params", "", "JSON object of request params (query params for GET, body params otherwise).")

	return cmd
}
