// Fusiond is a real-time context fusion daemon.
//
// Producers (screen watcher, voice listener, camera vision) POST
// observations to the HTTP API; fusiond merges them into a single
// world state, fuses the latest observations into a readable context
// and asks an LLM provider for actionable recommendations.
//
// Configuration is loaded from an optional YAML file plus environment
// variables. See internal/config for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	fusiond
//
//	# Configure via environment
//	SERVER_PORT=9090 PROVIDER_NAME=anthropic fusiond
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fusiond/internal/config"
	"github.com/fyrsmithlabs/fusiond/internal/fusion"
	"github.com/fyrsmithlabs/fusiond/internal/http"
	"github.com/fyrsmithlabs/fusiond/internal/logging"
	"github.com/fyrsmithlabs/fusiond/internal/perception"
	"github.com/fyrsmithlabs/fusiond/internal/recommend"
	"github.com/fyrsmithlabs/fusiond/internal/state"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  fusiond            Start the fusion daemon\n")
			fmt.Fprintf(os.Stderr, "  fusiond version    Show version information\n")
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("fusiond by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the fusion daemon and blocks until the context is
// cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes the structured logger
//  3. Wires the world state store, fusion options and recommendation
//     provider into the perception service
//  4. Starts the HTTP server with the metrics endpoint attached
//  5. Performs graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting fusiond",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Provider.Name),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	svc, err := initService(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize perception service: %w", err)
	}

	srv, err := http.NewServer(svc, logger, &http.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	// Register metrics endpoint
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ingest_endpoint", "/api/v1/context"),
		zap.String("metrics_endpoint", "/metrics"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// initService wires the store, fusion options and recommendation
// generator into the perception service.
func initService(cfg *config.Config, logger *zap.Logger) (*perception.Service, error) {
	store := state.NewStore()

	provider, err := recommend.NewProvider(recommend.Config{
		Provider:    cfg.Provider.Name,
		Model:       cfg.Provider.Model,
		APIKey:      cfg.Provider.APIKey.Value(),
		BaseURL:     cfg.Provider.BaseURL,
		Timeout:     cfg.Provider.Timeout.Duration(),
		MaxTokens:   cfg.Provider.MaxTokens,
		Temperature: cfg.Provider.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation provider: %w", err)
	}

	if !provider.Available() {
		logger.Warn("recommendation provider not configured, using fallback recommendations",
			zap.String("provider", cfg.Provider.Name))
	}

	gen := recommend.NewGenerator(provider, cfg.Provider.Timeout.Duration(), logger)

	opts := fusion.Options{
		MaxOtherApps:    cfg.Fusion.MaxOtherApps,
		OCRPreviewChars: cfg.Fusion.OCRPreviewChars,
		IdleSummary:     cfg.Fusion.IdleSummary,
	}

	return perception.NewService(store, gen, opts, logger)
}
