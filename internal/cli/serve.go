package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/project-atrium/warder/internal/config"
	"github.com/project-atrium/warder/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the warder server",
		Long: `Start the warder gRPC and HTTP servers.

The server will:
  - Answer ext_authz check requests over gRPC
  - Serve HTTP health endpoints (/healthz/live, /healthz/ready)
  - Load configuration from file, environment variables, and command-line flags

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (WARDER_*)
  3. Configuration file (if --config or WARDER_CONFIG is set)
  4. Built-in defaults

Examples:
  # Start with default settings
  warder serve

  # Override server ports
  warder serve --grpc-port 9091 --http-port 8081

  # Use custom config file
  warder serve --config /etc/warder/config.yaml`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := resolveConfigPath()

	loader, err := config.NewLoaderWithFlags(configPath, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg, err := loader.Get()
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	provider := config.NewProvider(cfg)

	// Single logger and observer shared across all components
	logger := config.NewLogger(cfg.Observability)

	observer, err := config.NewObserverWithLogger(cfg.Observability, logger)
	if err != nil {
		return fmt.Errorf("failed to create observer: %w", err)
	}
	provider.SetObserver(observer)

	authorizer, err := provider.Authorizer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create authorizer: %w", err)
	}

	serverCfg := provider.ServerConfig()
	serverCfg.AuthzServer = server.NewAuthzServer(authorizer)
	serverCfg.Logger = logger

	srv := server.New(serverCfg)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// All components initialized — signal readiness via gRPC health service
	srv.SetReady()

	fmt.Println("warder is running")
	fmt.Printf("  gRPC (ext_authz):      localhost:%d\n", serverCfg.GRPCPort)
	fmt.Printf("  Health (gRPC):         localhost:%d (grpc.health.v1.Health)\n", serverCfg.GRPCPort)
	fmt.Printf("  Health (HTTP live):    http://localhost:%d/healthz/live\n", serverCfg.HTTPPort)
	fmt.Printf("  Health (HTTP ready):   http://localhost:%d/healthz/ready\n", serverCfg.HTTPPort)
	fmt.Printf("  Config:                %s\n", configPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")

	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	fmt.Println("Shutdown complete")
	return nil
}
