// Package server hosts the ext_authz gRPC surface plus the HTTP health
// endpoints in front of the authentication pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server manages the gRPC and HTTP servers
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	healthServer *health.Server

	grpcPort int
	httpPort int

	authzServer *AuthzServer
	logger      *slog.Logger
}

// Config contains server configuration
type Config struct {
	GRPCPort int
	HTTPPort int

	AuthzServer *AuthzServer

	// Logger receives server lifecycle events. If nil, uses slog.Default().
	Logger *slog.Logger
}

// New creates a new server with the given configuration
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		grpcPort:     cfg.GRPCPort,
		httpPort:     cfg.HTTPPort,
		authzServer:  cfg.AuthzServer,
		healthServer: newHealthServer(),
		logger:       logger,
	}
}

// Start starts both the gRPC and HTTP servers. Services come up NOT_SERVING;
// the caller flips readiness with SetReady once the rest of startup is done.
func (s *Server) Start(ctx context.Context) error {
	s.grpcServer = grpc.NewServer()

	authv3.RegisterAuthorizationServer(s.grpcServer, s.authzServer)
	healthpb.RegisterHealthServer(s.grpcServer, s.healthServer)

	// Reflection makes grpcurl and friends work against the server
	reflection.Register(s.grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port %d: %w", s.grpcPort, err)
	}

	go func() {
		s.logger.Info("gRPC server listening", slog.Int("port", s.grpcPort))
		if err := s.grpcServer.Serve(grpcListener); err != nil {
			s.logger.Error("gRPC server error", slog.String("error", err.Error()))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz/live", s.handleLiveness)
	mux.HandleFunc("/healthz/ready", s.handleReadiness)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.httpPort),
		Handler: mux,
	}

	go func() {
		s.logger.Info("HTTP server listening", slog.Int("port", s.httpPort))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops both servers
func (s *Server) Stop(ctx context.Context) error {
	if s.healthServer != nil {
		s.healthServer.Shutdown()
	}

	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}
