// Command substrate runs a substrate node: an HTTP and WebSocket frontend
// over a composite backend built from the instance's config file.
//
// Grounded on the teacher's apps/helm-node/main.go dispatcher shape
// (Run(args, stdout, stderr) for testability, a default "run the server"
// command, signal-driven graceful shutdown) adapted to this module's own
// subsystems in place of the teacher's agent/executor/guardian kernel.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/substratefabric/core/pkg/config"
	"github.com/substratefabric/core/pkg/httpapi"
	"github.com/substratefabric/core/pkg/identity"
	"github.com/substratefabric/core/pkg/observability"
	"github.com/substratefabric/core/pkg/validator"
	"github.com/substratefabric/core/pkg/wsapi"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

var startServer = runServer

// Run is the entrypoint for testing, mirroring the teacher's dispatcher
// so `go test` can drive subcommands without touching os.Args/os.Exit.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		startServer()
		return 0
	}

	switch args[1] {
	case "server":
		startServer()
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stdout, "Unknown command: %s. Defaulting to server...\n", args[1])
		startServer()
		return 0
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: substrate <command> [arguments]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	_, _ = fmt.Fprintln(w, "  server   Run the substrate node (default)")
	_, _ = fmt.Fprintln(w, "  help     Show this message")
}

func runServer() {
	logger := slog.Default()
	logger.Info("substrate: starting")
	ctx := context.Background()

	cfgPath := os.Getenv("SUBSTRATE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("substrate: loading config", "error", err)
		os.Exit(1)
	}

	registry := validator.NewRegistry(validator.Accept)
	loadSchemaRegistry(ctx, logger, registry, cfg.SchemaRegistry)
	validate := validator.Schema(registry)

	backend, err := buildBackend(ctx, logger, cfg, validate)
	if err != nil {
		logger.Error("substrate: building backend", "error", err)
		os.Exit(1)
	}

	obsConfig := observability.DefaultConfig()
	obsConfig.Enabled = cfg.MetricsEnabled
	obs, err := observability.New(ctx, obsConfig)
	if err != nil {
		logger.Error("substrate: init observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()
	backend = newInstrumentedBackend(backend, obs)

	var auth func(http.Handler) http.Handler
	if os.Getenv("SUBSTRATE_OPERATOR_AUTH") == "1" {
		keySet, err := identity.NewInMemoryKeySet()
		if err != nil {
			logger.Error("substrate: init operator keyset", "error", err)
			os.Exit(1)
		}
		auth = httpapi.OperatorAuth(keySet)
		logger.Info("substrate: operator auth enabled")
	}

	opts := httpapi.DefaultOptions()
	opts.CORSOrigin = cfg.CORSOrigin
	opts.Auth = auth

	httpServer := httpapi.NewServer(backend, opts)
	wsServer := wsapi.NewServer(backend)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", httpServer.Handler())
	mux.Handle("/ws", wsServer)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("substrate: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("substrate: server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("substrate: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("substrate: shutdown error", "error", err)
	}
	if err := backend.Cleanup(shutdownCtx); err != nil {
		logger.Warn("substrate: backend cleanup", "error", err)
	}
}
