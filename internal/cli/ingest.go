package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/project-atrium/warder/internal/config"
)

// NewIngestCmd creates the ingest command
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Consume organization-change notifications into the trust registry",
		Long: `Long-poll the configured SQS queue for organization-change
notifications and maintain the issuer trust registry from them.

Messages are processed with per-message failure isolation: a failing
message stays on the queue for redelivery while its batch siblings are
ingested and deleted. Upserts are idempotent, so redelivery is safe.

Examples:
  # Consume the configured queue
  warder ingest --config /etc/warder/config.yaml

  # Override the queue
  warder ingest --queue-url https://sqs.us-east-1.amazonaws.com/123456789012/org-events`,
		RunE: runIngest,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := config.NewLoaderWithFlags(resolveConfigPath(), cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)

	logger := config.NewLogger(cfg.Observability)
	observer, err := config.NewObserverWithLogger(cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("failed to create observer: %w", err)
	}
	provider.SetObserver(observer)

	consumer, err := provider.IngestConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	logger.Info("consuming organization-change notifications")
	return consumer.Run(ctx)
}
