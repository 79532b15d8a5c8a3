// Package main is the entry point of the grades Telegram bot.
//
// The bot answers /consultar with a student's grade report read from Notion
// and limits every chat to two reports per day.
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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gradesbot/gradesbot/config"
	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/bootstrap"
	tgclient "github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
	"github.com/gradesbot/gradesbot/internal/interface/telegram"
	tgmiddleware "github.com/gradesbot/gradesbot/internal/interface/telegram/middleware"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// webhookPath is where Telegram delivers updates in webhook mode.
const webhookPath = "/telegram/webhook"

func main() {
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
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid bot config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING AND TIMEZONE
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.SetupLogger(cfg)

	if err := timeutil.SetZone(cfg.App.Timezone); err != nil {
		return fmt.Errorf("failed to set timezone: %w", err)
	}
	log.Info("starting grades bot",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"mode", cfg.Telegram.Mode,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. USAGE STORE
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open usage store: %w", err)
	}
	defer func() {
		log.Info("closing usage store...")
		stores.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	notionClient := bootstrap.NewNotionClient(cfg, log)

	clientCfg := tgclient.DefaultClientConfig(cfg.Telegram.Token)
	clientCfg.PollTimeout = cfg.Telegram.PollingTimeout
	clientCfg.Logger = log
	telegramClient := tgclient.NewClient(clientCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	deps := telegram.BotDependencies{
		RegisterChat: command.NewRegisterChatHandler(stores.Chats),
		CheckUsage:   command.NewCheckUsageHandler(stores.Usage, nil, log),
		Reports:      query.NewGetReportHandler(notionClient, cfg.Notion.FetchTimeout, log),
		Finals:       query.NewGetFinalGradeHandler(notionClient, cfg.Notion.FetchTimeout),
		Presenter:    bootstrap.NewPresenter(cfg),
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	botCfg := telegram.DefaultBotConfig()
	botCfg.Mode = cfg.Telegram.Mode
	botCfg.WebhookURL = cfg.Telegram.WebhookURL
	botCfg.WebhookSecret = cfg.Telegram.WebhookSecret
	botCfg.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botCfg.HandlerTimeout = cfg.Telegram.HandlerTimeout
	botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botCfg.Flood = tgmiddleware.FloodConfig{
		RequestsPerMinute: cfg.Telegram.FloodPerMinute,
		BurstSize:         cfg.Telegram.FloodBurst,
	}
	botCfg.Logger = log

	bot, err := telegram.NewBot(botCfg, telegramClient, deps)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 2)

	var webhookServer *http.Server
	if cfg.Telegram.Mode == telegram.ModeWebhook {
		webhookServer = newWebhookServer(cfg.Telegram.WebhookListen, bot, stores)
		go func() {
			log.Info("webhook endpoint listening", "addr", webhookServer.Addr, "path", webhookPath)
			if err := webhookServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("webhook server error: %w", err)
			}
		}()
	}

	go func() {
		if err := bot.Start(ctx); err != nil {
			errCh <- fmt.Errorf("telegram bot error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error("service error", "error", err)
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	if webhookServer != nil {
		if err := webhookServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop webhook server gracefully", "error", err)
			shutdownErr = err
		}
	}
	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", "error", err)
		shutdownErr = err
	}

	if shutdownErr != nil {
		log.Warn("shutdown completed with errors")
	} else {
		log.Info("shutdown completed successfully", "stats", bot.GetStats())
	}
	return nil
}

// newWebhookServer serves Telegram deliveries plus a liveness check.
func newWebhookServer(addr string, bot *telegram.Bot, stores *bootstrap.Stores) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	r.Post(webhookPath, bot.WebhookHandler().ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if stores.Ping != nil {
			if err := stores.Ping.Ping(r.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				http.Error(w, "usage store unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}
