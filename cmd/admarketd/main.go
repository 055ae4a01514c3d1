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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admarket/config"
	"admarket/core/events"
	"admarket/native/campaign"
	"admarket/native/marketplace"
	"admarket/observability/logging"
	"admarket/state"
	"admarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	listenAddr := flag.String("listen", ":9480", "Listen address for metrics and health endpoints")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ADMARKET_ENV"))
	logger := logging.Setup("admarketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	journal, err := events.OpenJournal(cfg.JournalPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to open event journal: %v", err))
	}
	defer journal.Close()
	journal.SetLogger(logger)

	limits, err := cfg.CampaignLimits()
	if err != nil {
		logger.Error("Invalid campaign limits", slog.Any("error", err))
		os.Exit(1)
	}
	params, err := cfg.RegistryParams()
	if err != nil {
		logger.Error("Invalid registry parameters", slog.Any("error", err))
		os.Exit(1)
	}

	manager := state.NewManager(db)
	engine := campaign.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(journal)
	engine.SetLimits(limits)

	registry := marketplace.NewRegistry(manager, engine, params)
	registry.SetEmitter(journal)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	server := &http.Server{
		Addr:              *listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", slog.String("listen", *listenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("Marketplace registry ready",
		slog.String("dataDir", cfg.DataDir),
		slog.String("journal", cfg.JournalPath),
		slog.Bool("paused", registry.IsPaused("marketplace")),
		slog.String("reserve", registry.Reserve().String()),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Metrics server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown incomplete", slog.Any("error", err))
	}
}
