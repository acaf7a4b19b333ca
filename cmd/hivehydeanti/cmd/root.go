// Package cmd defines the hivehydeanti CLI's command tree: flags bound to
// package vars, one New() that returns the wired root command.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiBaseURL string
	timeout    time.Duration
)

// New returns the root command of the hivehydeanti CLI.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hivehydeanti",
		Short:   "Operator CLI for the HiveHyde-Anti request-signing pipeline.",
		Version: version(),
	}

	cmd.PersistentFlags().StringVar(&apiBaseURL, "api-base-url", "", "Base URL of the protected API (required; the vault POSTs <api-base-url>/warden/init).")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for the init/sign round-trip.")
	_ = cmd.MarkPersistentFlagRequired("api-base-url")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSignCmd())

	return cmd
}

func version() string {
	return fmt.Sprintf("hivehydeanti-cli/%s", "0.1.0")
}
