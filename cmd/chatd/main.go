// Command chatd serves the chat API over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/config"
	"github.com/xiaot623/gochat/internal/policy"
	"github.com/xiaot623/gochat/internal/repository"
	"github.com/xiaot623/gochat/internal/service"
	transporthttp "github.com/xiaot623/gochat/internal/transport/http"
	"github.com/xiaot623/gochat/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults to $CHATD_CONFIG)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatd: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("chatd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting chatd",
		"port", cfg.Port,
		"upstream", cfg.UpstreamKind,
		"upstream_url", cfg.UpstreamBaseURL,
		"store", cfg.StoreDriver,
	)

	// Initialize store
	store, err := repository.New(cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	// Initialize model runtime client
	generator, err := llm.NewGenerator(cfg.UpstreamKind, cfg.UpstreamBaseURL, cfg.UpstreamAPIKey, cfg.UpstreamTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize upstream client: %w", err)
	}

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		return fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	svc := service.New(store, generator, cfg, policyEngine, logger)
	wsServer := ws.NewServer(svc, cfg, logger)
	e := transporthttp.NewServer(svc, wsServer)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Info("chat API started", "port", cfg.Port)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// WebSocket connections are hijacked and not tracked by the HTTP server.
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to close websocket connections gracefully", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown server gracefully", "error", err)
	}

	logger.Info("chatd stopped")
	return nil
}
