// tickertape connects to the trade stream and prints live ticks to the
// console. The quote poller is wired in, so DEGRADED and OFFLINE spells
// keep printing synthesized ticks.
// Usage: go run ./cmd/tickertape --config configs/marketdesk.local.yaml --symbols AAPL,NVDA
//
// Useful environment variables:
//
//	FINNHUB_API_KEY - REST quote fallback and stream token fallback
//	STREAM_TOKEN    - explicit stream bearer token
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/marketdesk/marketdesk/internal/auth"
	"github.com/marketdesk/marketdesk/internal/config"
	"github.com/marketdesk/marketdesk/internal/poller"
	"github.com/marketdesk/marketdesk/internal/provider"
	"github.com/marketdesk/marketdesk/internal/store"
	"github.com/marketdesk/marketdesk/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/marketdesk.example.yaml", "path to config file")
	symbolList := flag.String("symbols", "AAPL,NVDA,TSLA", "comma-separated symbols to subscribe")
	verbose := flag.Bool("verbose", false, "print full quote JSON on quote changes")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.Load(*configPath)
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

	if cfg.Stream.Token == "" {
		logger.Error("no stream token available",
			"stream_token_set", false,
			"finnhub_key_set", cfg.Providers.Finnhub.APIKey != "",
		)
		logger.Info("Set environment variables: STREAM_TOKEN or FINNHUB_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Wire the tick path directly: pool -> session -> store, with the
	// poller covering impaired spells.
	pool := provider.NewPool(cfg.Providers, logger)

	st := store.New(store.Config{
		TickCapacity:     cfg.Stream.TickBufferCapacity,
		ReorderTolerance: cfg.Stream.ReorderTolerance,
		NewsMaxItems:     cfg.News.MaxItems,
		NewsRetention:    cfg.News.Retention,
	}, logger)

	session := stream.NewSession(cfg.Stream, st, pool, logger)
	fallback := poller.New(poller.Config{Interval: cfg.Stream.PollInterval}, st, session, pool, logger)

	obs := st.Observe()
	defer st.Unobserve(obs)

	logger.Info("starting stream session", "url", cfg.Stream.URL)
	if err := session.Start(ctx); err != nil {
		logger.Error("failed to start stream session", "error", err)
		os.Exit(1)
	}
	if err := fallback.Start(ctx); err != nil {
		logger.Error("failed to start quote poller", "error", err)
		os.Exit(1)
	}

	var symbols []string
	for _, s := range strings.Split(*symbolList, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
			session.Subscribe(s)
		}
	}
	logger.Info("subscribed", "symbols", symbols)

	// Console printer
	go printDiffs(ctx, st, obs, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionStats := session.Stats()
				storeStats := st.Stats()
				pollStats := fallback.Stats()
				logger.Info("stats",
					"session_state", sessionStats.State,
					"reconnect_attempts", sessionStats.Attempts,
					"subscribed", sessionStats.Subscribed,
					"ticks_inserted", storeStats.TicksInserted,
					"ticks_reordered", storeStats.TicksReorder,
					"ticks_dropped", storeStats.TicksDropped,
					"poll_active", pollStats.Active,
					"poll_cycles", pollStats.Cycles,
					"poll_ticks", pollStats.Synthesized,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	fallback.Stop(shutdownCtx)
	session.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

// printDiffs turns committed store batches into console lines. Ticks
// are followed with a per-symbol timestamp cursor so each print pass
// only emits what arrived since the last one.
func printDiffs(ctx context.Context, st *store.Store, obs *store.Observer, verbose bool) {
	cursor := make(map[string]int64)

	for {
		select {
		case <-ctx.Done():
			return
		case diff := <-obs.C():
			for _, symbol := range diff.Ticks {
				ticks := st.Ticks(symbol)
				for _, tick := range ticks {
					if tick.Timestamp <= cursor[symbol] {
						continue
					}
					fmt.Printf("[TICK] symbol=%s price=%.2f vol=%d source=%s at=%s\n",
						tick.Symbol, tick.Price, tick.Volume, tick.Source,
						time.UnixMilli(tick.Timestamp).Format("15:04:05.000"))
				}
				if len(ticks) > 0 {
					cursor[symbol] = ticks[len(ticks)-1].Timestamp
				}
			}

			if verbose {
				quotes := st.Quotes(diff.Quotes)
				for _, symbol := range diff.Quotes {
					q, ok := quotes[symbol]
					if !ok {
						continue
					}
					data, _ := json.Marshal(q)
					fmt.Printf("[QUOTE] %s\n", data)
				}
			}

			if diff.Session {
				status := st.SessionStatus()
				fmt.Printf("[SESSION] state=%s phase=%s attempts=%d\n",
					status.State, status.MarketPhase, status.ReconnectAttempts)
			}
		}
	}
}
