package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketdesk/marketdesk/internal/auth"
	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/core"
	"github.com/marketdesk/marketdesk/internal/model"
	"github.com/marketdesk/marketdesk/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/marketdesk.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting marketdesk",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Environment credentials fill any keys the YAML left unset
	creds, err := auth.LoadCredentials()
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}
	creds.ApplyTo(&cfg.Providers)
	creds.ApplyStream(&cfg.Stream)

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"stream_url", cfg.Stream.URL,
		"finnhub_key", auth.Mask(cfg.Providers.Finnhub.APIKey),
		"fmp_key", auth.Mask(cfg.Providers.FMP.APIKey),
		"alphavantage_key", auth.Mask(cfg.Providers.Alphavantage.APIKey),
		"iex_key", auth.Mask(cfg.Providers.IEX.APIKey),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Assemble the data plane
	c, err := core.New(cfg, logger)
	if err != nil {
		logger.Error("failed to assemble core", "error", err)
		os.Exit(1)
	}

	// Start health server early so the initial symbol load is observable
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(c, logger),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start the core (initial symbol load, stream, poller, scanners, news)
	if err := c.Start(ctx); err != nil {
		logger.Error("failed to start core", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := c.Stop(shutdownCtx); err != nil {
			logger.Error("core stop failed", "error", err)
		}
	}()

	logger.Info("marketdesk running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Graceful shutdown of health server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("marketdesk stopped")
}

// createHealthHandler creates the HTTP handler for the health and
// status probes.
func createHealthHandler(c *core.Core, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := c.Status()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check the stream session
		health.Components["stream"] = map[string]interface{}{
			"state":      string(status.Session.State),
			"phase":      string(status.Session.MarketPhase),
			"subscribed": status.Session.SubscribedCount,
		}
		if status.Session.State == model.StateOffline {
			health.Status = "degraded"
		}

		// Check providers
		enabled, healthy := 0, 0
		for _, p := range status.Providers {
			if !p.Enabled {
				continue
			}
			enabled++
			if p.Healthy {
				healthy++
			}
		}
		health.Components["providers"] = map[string]int{
			"enabled": enabled,
			"healthy": healthy,
		}
		if enabled == 0 {
			health.Status = "unhealthy"
		} else if healthy == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		status := c.Status()
		stats := c.Stats()

		ages := make(map[string]string, len(status.Ages))
		for kind, age := range status.Ages {
			ages[string(kind)] = age.Round(time.Millisecond).String()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"version":   version.String(),
			"session":   status.Session,
			"providers": status.Providers,
			"ages":      ages,
			"stats":     stats,
		})
	})

	return mux
}
