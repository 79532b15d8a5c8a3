// Package main is the entry point of the grades REST gateway.
//
// The gateway serves the same reports as the bot over HTTP for web clients
// and other channels. Run with -hash-key to print the bcrypt hash of a new
// API key for GATEWAY_API_KEY_HASH.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gradesbot/gradesbot/config"
	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/bootstrap"
	httpserver "github.com/gradesbot/gradesbot/internal/interface/http"
	"github.com/gradesbot/gradesbot/internal/interface/http/handlers"
	"github.com/gradesbot/gradesbot/pkg/circuitbreaker"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

func main() {
	hashKey := flag.String("hash-key", "", "print the bcrypt hash of the given API key and exit")
	flag.Parse()

	if *hashKey != "" {
		hash, err := handlers.HashAPIKey(*hashKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to hash key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		return fmt.Errorf("invalid gateway config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING AND TIMEZONE
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.SetupLogger(cfg)
	requestLog := bootstrap.NewRequestLogger(cfg)
	defer func() { _ = requestLog.Sync() }()

	if err := timeutil.SetZone(cfg.App.Timezone); err != nil {
		return fmt.Errorf("failed to set timezone: %w", err)
	}
	log.Info("starting grades gateway",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"api_key_required", cfg.Gateway.APIKeyHash != "",
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. USAGE STORE AND RECORD STORE
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open usage store: %w", err)
	}
	defer func() {
		log.Info("closing usage store...")
		stores.Close()
	}()

	notionClient := bootstrap.NewNotionClient(cfg, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if stores.Ping != nil {
		health.AddCheck("usage_store", handlers.NewPingCheck(stores.Ping))
	}
	health.AddCheck("notion", handlers.NewBreakerCheck(func() bool {
		return notionClient.BreakerState() == circuitbreaker.StateOpen
	}))

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.Gateway.Host
	serverCfg.Port = cfg.Gateway.Port
	serverCfg.RequestTimeout = cfg.Gateway.RequestTimeout
	serverCfg.AllowedOrigins = cfg.Gateway.AllowedOrigins
	serverCfg.APIKeyHash = cfg.Gateway.APIKeyHash
	serverCfg.Version = cfg.App.Version

	server, err := httpserver.NewServer(serverCfg, httpserver.Dependencies{
		Reports:    query.NewGetReportHandler(notionClient, cfg.Notion.FetchTimeout, log),
		Finals:     query.NewGetFinalGradeHandler(notionClient, cfg.Notion.FetchTimeout),
		Enrollment: query.NewVerifyEnrollmentHandler(notionClient, cfg.Notion.FetchTimeout),
		Usage:      query.NewGetUsageHandler(stores.Usage, nil),
		CheckUsage: command.NewCheckUsageHandler(stores.Usage, nil, log),
		Presenter:  bootstrap.NewPresenter(cfg),
		Health:     health,
		Logger:     requestLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. RUN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server gracefully", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}
