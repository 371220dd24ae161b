package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/omsfleet/binance-gateway/internal/config"
	"github.com/omsfleet/binance-gateway/internal/fanout"
	"github.com/omsfleet/binance-gateway/internal/keymanager"
	"github.com/omsfleet/binance-gateway/internal/server"
	"github.com/omsfleet/binance-gateway/internal/stream"
	"github.com/omsfleet/binance-gateway/pkg/bus"
	"github.com/omsfleet/binance-gateway/pkg/vault"
	"github.com/omsfleet/binance-gateway/services/binance"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logger := logrus.WithField("component", "main")

	configPath := os.Getenv("GATEWAY_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	store := buildStore(cfg, logger)
	resolver := keymanager.NewResolver(store)

	// One token bucket for the whole process: batch workers and
	// single-account handlers all draw from it, since Binance limits are
	// per IP regardless of which endpoint spends the budget.
	rps := cfg.FanOut.RequestsPerSecond
	if rps <= 0 {
		rps = 15
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rps)

	clientOpts := []binance.Option{
		binance.WithHosts(cfg.Hosts),
		binance.WithLimiter(limiter),
	}

	dispatcher := fanout.NewDispatcher(resolver, fanout.Config{
		Workers:       cfg.FanOut.Workers,
		BatchTimeout:  cfg.FanOut.BatchTimeout,
		Limiter:       limiter,
		ClientOptions: clientOpts,
	})

	var publisher *bus.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = bus.Connect(cfg.NATS.URL, "binance-gateway")
		if err != nil {
			logger.Warnf("NATS unavailable, event publishing disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}

	registry := stream.NewRegistry()
	defer registry.CloseAll()

	srv := server.New(cfg, resolver, dispatcher, registry, publisher, clientOpts...)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		registry.CloseAll()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf("server shutdown error: %v", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

// buildStore picks the credential backend: Vault when configured, the
// in-memory store otherwise (tests, local development).
func buildStore(cfg *config.Config, logger *logrus.Entry) keymanager.Store {
	if cfg.Vault.Address == "" {
		logger.Warn("vault not configured, using in-memory credential store")
		return keymanager.NewMemoryStore()
	}

	client, err := vault.NewClient(vault.Config{
		Address: cfg.Vault.Address,
		Token:   cfg.Vault.Token,
	})
	if err != nil {
		logger.Fatalf("failed to connect to vault: %v", err)
	}
	return keymanager.NewVaultStore(client)
}
