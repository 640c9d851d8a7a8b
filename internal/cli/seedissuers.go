package cli

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/project-atrium/warder/internal/config"
	"github.com/project-atrium/warder/internal/ingest"
)

// seedFile is the YAML shape consumed by seed-issuers
type seedFile struct {
	Issuers []seedIssuer `yaml:"issuers"`
}

// seedIssuer names one issuer either directly by URL or by the identity pool
// it is derived from
type seedIssuer struct {
	URL            string `yaml:"url"`
	IdentityPoolID string `yaml:"identity_pool_id"`
	Region         string `yaml:"region"`
	OrganizationID string `yaml:"organization_id"`
}

// NewSeedIssuersCmd creates the seed-issuers command
func NewSeedIssuersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-issuers <file>",
		Short: "Upsert trusted issuers from a YAML file",
		Long: `Upsert trusted issuers into the registry from a YAML file, for
bootstrapping environments that have no notification stream yet.

File format:

  issuers:
    - url: https://cognito-idp.us-east-1.amazonaws.com/pool-1
      organization_id: 8f14e45f-ceea-4e77-81fa-8f9dcb6d1f84
    - identity_pool_id: pool-2
      region: eu-west-1
      organization_id: 45c48cce-2e2d-4fbd-aa04-605ab5c5c3c9

Upserts are idempotent; re-running the command bumps each record's
version and changes nothing else.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeedIssuers,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runSeedIssuers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	if len(seeds.Issuers) == 0 {
		return fmt.Errorf("seed file lists no issuers")
	}

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

	for i, seed := range seeds.Issuers {
		url := seed.URL
		if url == "" {
			if seed.IdentityPoolID == "" || seed.Region == "" {
				return fmt.Errorf("issuer %d: either url or identity_pool_id plus region is required", i)
			}
			url = ingest.DeriveIssuerURL(seed.IdentityPoolID, seed.Region)
		}

		organizationID, err := uuid.Parse(seed.OrganizationID)
		if err != nil {
			return fmt.Errorf("issuer %d: bad organization_id: %w", i, err)
		}

		record, err := reg.Upsert(ctx, url, organizationID)
		if err != nil {
			return fmt.Errorf("failed to upsert %s: %w", url, err)
		}

		fmt.Printf("upserted %s (organization %s, version %d)\n", record.URL, record.OrganizationID, record.Version)
	}

	return nil
}
