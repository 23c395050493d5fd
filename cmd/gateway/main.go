package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/api"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/config"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/core"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/factory"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/logger"
)

const drainTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "gateway",
		Short:        "Relay one TCP request/response per connection to a fixed upstream",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Variables already set in the environment win over the file.
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load env file %s: %w", envFile, err)
				}
			}
			return run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Load environment variables from a dotenv file")

	return cmd
}

func run(ctx context.Context) error {
	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(logger.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	logger.Info("Starting xgateway...",
		"listen_port", cfg.ListenPort,
		"upstream", net.JoinHostPort(cfg.UpstreamHost, fmt.Sprint(cfg.UpstreamPort)),
		"discovery", cfg.DiscoveryMode,
		"frame_mode", cfg.FrameMode,
		"workers", cfg.WorkerPoolSize)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create upstream resolver
	resolver, err := factory.NewResolverFactory(cfg).Create(ctx)
	if err != nil {
		logger.Fatal("Failed to create upstream resolver", "error", err)
	}

	// Start health server (optional)
	var healthServer *api.HealthServer
	if cfg.HealthServerPort != "" {
		healthServer = api.NewHealthServer(":"+cfg.HealthServerPort, resolver, cfg.Timeout)
		healthServer.Start()
	}

	// Create forwarding handler
	handler, err := factory.NewForwarderFactory(cfg).Create(resolver)
	if err != nil {
		logger.Fatal("Failed to create forwarder", "error", err)
	}

	// Start TCP listener
	listener, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		logger.Fatal("Failed to start listener", "port", cfg.ListenPort, "error", err)
	}
	logger.Info("Gateway listening", "addr", listener.Addr().String())

	server := &core.Server{
		Listener:          listener,
		ConnectionHandler: handler,
		Pool:              core.NewWorkerPool(cfg.WorkerPoolSize),
	}

	if healthServer != nil {
		healthServer.SetServing(true)
	}

	served := make(chan error, 1)
	go func() {
		served <- server.Serve()
	}()

	select {
	case err := <-served:
		if err != nil {
			logger.Fatal("Server error", "error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down, draining in-flight connections", "timeout", drainTimeout)
	if healthServer != nil {
		healthServer.SetServing(false)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		logger.Warn("Drain incomplete", "error", err)
	}
	if healthServer != nil {
		if err := healthServer.Stop(drainCtx); err != nil {
			logger.Warn("Health server shutdown failed", "error", err)
		}
	}
	<-served
	logger.Info("Gateway stopped")
	return nil
}
