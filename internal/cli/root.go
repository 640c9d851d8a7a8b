// Package cli implements the warder command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// configFile is the --config flag value shared by all subcommands
var configFile string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warder",
		Short: "Token authentication and issuer-trust service",
		Long: `warder authenticates callers presenting a bound identity/access token
pair, resolves their durable identity, and maintains the registry of
trusted token issuers from organization-change notifications.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to configuration file (YAML, JSON, or TOML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewLookupIssuerCmd())
	cmd.AddCommand(NewSeedIssuersCmd())

	return cmd
}

// resolveConfigPath returns the config file path from the flag or the
// WARDER_CONFIG environment variable
func resolveConfigPath() string {
	if configFile != "" {
		return configFile
	}
	return os.Getenv("WARDER_CONFIG")
}
