package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/project-atrium/warder/internal/config"
)

// NewLookupIssuerCmd creates the lookup-issuer command
func NewLookupIssuerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup-issuer <url>",
		Short: "Look an issuer up in the trust registry",
		Args:  cobra.ExactArgs(1),
		RunE:  runLookupIssuer,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runLookupIssuer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	loader, err := config.NewLoaderWithFlags(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)
	reg, err := provider.Registry(ctx)
	if err != nil {
		return fmt.Errorf("failed to create registry: %w", err)
	}

	record, err := reg.Lookup(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("url:          %s\n", record.URL)
	fmt.Printf("organization: %s\n", record.OrganizationID)
	fmt.Printf("version:      %d\n", record.Version)
	return nil
}
