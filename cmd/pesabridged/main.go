package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pesabridge/pesabridge/internal/api"
	"github.com/pesabridge/pesabridge/internal/auth"
	"github.com/pesabridge/pesabridge/internal/broker"
	"github.com/pesabridge/pesabridge/internal/config"
	"github.com/pesabridge/pesabridge/internal/gateway"
	"github.com/pesabridge/pesabridge/internal/provider"
	"github.com/pesabridge/pesabridge/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run owns the full daemon lifecycle so deferred cleanup executes before the
// process exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("starting PesaBridge daemon", "http_port", cfg.HTTPPort)

	// Persistence + ledger recovery.
	persister, err := store.NewPersistence(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	ledger, err := persister.LoadLedger()
	if err != nil {
		log.Warn("could not load persisted ledger", "error", err)
	}
	memStore := store.NewMemStore(ledger, persister)
	log.Info("ledger loaded", "transactions", len(ledger))

	if cfg.SeedFile != "" {
		if err := store.LoadSeed(cfg.SeedFile, memStore); err != nil {
			return fmt.Errorf("seed load failed: %w", err)
		}
		log.Info("account seed loaded", "file", cfg.SeedFile)
	}

	// Provider selection: the stub serves sandbox deployments and local dev.
	var providerClient provider.Client
	if cfg.ProviderStubbed || cfg.ProviderBaseURL == "" {
		log.Info("using stubbed payment provider")
		providerClient = provider.NewStub()
	} else {
		providerClient = provider.NewHTTPClient(cfg.ProviderBaseURL, cfg.ProviderSandbox, cfg.ProviderAPIKey)
	}

	guard := auth.NewGuard(memStore, memStore)
	gw := gateway.New(providerClient, memStore, log)
	registry := broker.NewRegistry(cfg.EventBuffer)
	socket := broker.NewSocket(guard, gw, registry, log)

	handler := &api.Handler{
		Guard:         guard,
		Gateway:       gw,
		Broker:        socket,
		Ledger:        memStore,
		WebhookSecret: cfg.WebhookSecret,
		Log:           log,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), api.CORS())
	handler.Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, finalizing disk writes")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	memStore.Wait()
	log.Info("persistence complete, exiting")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
