// Package telegram implements the Telegram interface of the grades bot: it
// receives updates, routes commands to handlers and manages the bot lifecycle.
package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
	"github.com/gradesbot/gradesbot/internal/interface/telegram/handler"
	"github.com/gradesbot/gradesbot/internal/interface/telegram/middleware"
)

// Update receiving modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// webhookSecretHeader carries the secret registered with setWebhook.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Mode is the update receiving mode: "polling" or "webhook".
	Mode string

	// WebhookURL is the public URL registered in webhook mode.
	WebhookURL string

	// WebhookSecret is checked against the secret token header of every
	// webhook delivery. Empty disables the check.
	WebhookSecret string

	// MaxConcurrentUpdates limits concurrent update processing.
	MaxConcurrentUpdates int

	// HandlerTimeout bounds the processing of one update.
	HandlerTimeout time.Duration

	// GracefulShutdownTimeout is how long Stop waits for in-flight updates.
	GracefulShutdownTimeout time.Duration

	// Flood configures the per-chat command rate limit.
	Flood middleware.FloodConfig

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Mode:                    ModePolling,
		MaxConcurrentUpdates:    32,
		HandlerTimeout:          30 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
		Flood:                   middleware.DefaultFloodConfig(),
		Logger:                  slog.Default(),
	}
}

// BotDependencies contains the application handlers behind the commands.
type BotDependencies struct {
	RegisterChat *command.RegisterChatHandler
	CheckUsage   *command.CheckUsageHandler
	Reports      *query.GetReportHandler
	Finals       *query.GetFinalGradeHandler
	Presenter    *presenter.ReportPresenter
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the main Telegram bot controller.
type Bot struct {
	config   BotConfig
	client   *telegram.Client
	sender   handler.Sender
	router   *Router
	flood    *middleware.FloodGuard
	recovery *middleware.RecoveryMiddleware
	logger   *slog.Logger

	running   bool
	runningMu sync.RWMutex
	updateSem chan struct{}
	wg        sync.WaitGroup

	stats *BotStats
}

// BotStats holds runtime statistics.
type BotStats struct {
	mu              sync.RWMutex
	StartedAt       time.Time
	UpdatesReceived int64
	UpdatesHandled  int64
	UpdatesDropped  int64
	ErrorsCount     int64
	CommandsCount   map[string]int64
}

// NewBot creates a bot that talks to Telegram through client.
func NewBot(config BotConfig, client *telegram.Client, deps BotDependencies) (*Bot, error) {
	if client == nil {
		return nil, errors.New("telegram client is required")
	}
	b, err := newBot(config, client, deps)
	if err != nil {
		return nil, err
	}
	b.client = client
	return b, nil
}

func newBot(config BotConfig, sender handler.Sender, deps BotDependencies) (*Bot, error) {
	if deps.RegisterChat == nil || deps.CheckUsage == nil || deps.Reports == nil ||
		deps.Finals == nil || deps.Presenter == nil {
		return nil, errors.New("bot dependencies are incomplete")
	}

	defaults := DefaultBotConfig()
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Mode == "" {
		config.Mode = defaults.Mode
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = defaults.MaxConcurrentUpdates
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = defaults.HandlerTimeout
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = defaults.GracefulShutdownTimeout
	}

	logger := config.Logger.With("component", "telegram_bot")

	router := NewRouter(logger)
	router.RegisterCommand("start", handler.NewStartHandler(deps.RegisterChat))
	router.RegisterCommand("help", handler.NewHelpHandler())
	router.RegisterCommand("consultar", handler.NewConsultarHandler(deps.CheckUsage, deps.Reports, deps.Presenter, logger))
	router.RegisterCommand("final", handler.NewFinalHandler(deps.Finals, deps.Presenter, logger))

	return &Bot{
		config:    config,
		sender:    sender,
		router:    router,
		flood:     middleware.NewFloodGuard(config.Flood),
		recovery:  middleware.NewRecoveryMiddleware(middleware.RecoveryConfig{EnableStackTrace: true, Logger: logger}),
		logger:    logger,
		updateSem: make(chan struct{}, config.MaxConcurrentUpdates),
		stats:     &BotStats{CommandsCount: make(map[string]int64)},
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token and receives updates until ctx is done. In webhook
// mode it registers the webhook; deliveries arrive through WebhookHandler.
func (b *Bot) Start(ctx context.Context) error {
	if b.client == nil {
		return errors.New("bot has no telegram client")
	}

	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.stats.StartedAt = time.Now()
	b.runningMu.Unlock()

	b.logger.Info("starting telegram bot", "mode", b.config.Mode, "commands", b.router.GetRegisteredCommands())

	if err := b.verifyToken(ctx); err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}

	go b.flood.Run(ctx)

	switch b.config.Mode {
	case ModePolling:
		if err := b.client.DeleteWebhook(ctx, false); err != nil {
			return fmt.Errorf("failed to delete webhook: %w", err)
		}
		return b.client.StartPolling(ctx, b.Dispatch)
	case ModeWebhook:
		if b.config.WebhookURL == "" {
			return errors.New("webhook URL is required for webhook mode")
		}
		if err := b.client.SetWebhook(ctx, b.config.WebhookURL, b.config.WebhookSecret); err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		b.logger.Info("webhook registered", "url", b.config.WebhookURL)
		<-ctx.Done()
		return nil
	default:
		return fmt.Errorf("unknown bot mode: %s", b.config.Mode)
	}
}

// Stop waits for in-flight updates, up to the graceful shutdown timeout.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	b.running = false
	b.runningMu.Unlock()

	b.logger.Info("stopping telegram bot")

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
		return nil
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
		return nil
	case <-ctx.Done():
		b.logger.Warn("context cancelled during shutdown")
		return ctx.Err()
	}
}

// IsRunning returns whether the bot is currently running.
func (b *Bot) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

func (b *Bot) verifyToken(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return err
	}
	b.logger.Info("bot verified", "id", me.ID, "username", me.Username)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// Dispatch schedules an update for processing. It blocks while all update
// slots are busy, which throttles polling. Processing outlives ctx
// cancellation so shutdown lets in-flight replies finish.
func (b *Bot) Dispatch(ctx context.Context, update *telegram.Update) error {
	select {
	case b.updateSem <- struct{}{}:
	case <-ctx.Done():
		return nil
	}

	b.stats.mu.Lock()
	b.stats.UpdatesReceived++
	b.stats.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.updateSem }()

		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.HandlerTimeout)
		defer cancel()
		b.handleUpdate(hctx, update)
	}()
	return nil
}

// handleUpdate processes a single Telegram update.
func (b *Bot) handleUpdate(ctx context.Context, update *telegram.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	cmd := telegram.ExtractCommand(msg)
	if cmd == "" || !b.router.HasCommand(cmd) {
		return
	}
	chatID := msg.Chat.ID

	if ok, wait := b.flood.Allow(chatID); !ok {
		b.stats.mu.Lock()
		b.stats.UpdatesDropped++
		b.stats.mu.Unlock()
		b.logger.Warn("command dropped by flood guard", "chat_id", chatID, "command", cmd, "retry_after", wait)
		return
	}

	traceID := uuid.NewString()
	ctx = middleware.ContextWithTraceID(ctx, traceID)
	log := b.logger.With("trace_id", traceID, "update_id", update.UpdateID, "chat_id", chatID, "command", cmd)

	b.stats.mu.Lock()
	b.stats.CommandsCount[cmd]++
	b.stats.mu.Unlock()

	start := time.Now()
	result := b.recovery.RecoverWithHandler(ctx, chatID, cmd, func() error {
		return b.router.HandleCommand(ctx, cmd, CommandContext{
			ChatID:    chatID,
			MessageID: msg.MessageID,
			Args:      telegram.ExtractCommandArgs(msg),
			Sender:    b.sender,
		})
	})

	switch {
	case result.Recovered:
		b.countError()
		if _, err := b.sender.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: result.UserMessage}); err != nil {
			log.Error("failed to send panic notice", "error", err)
		}
	case result.Err != nil:
		b.countError()
		if telegram.IsBlocked(result.Err) {
			log.Info("chat unreachable", "error", result.Err)
			return
		}
		log.Error("failed to handle command", "error", result.Err, "duration", time.Since(start))
	default:
		b.stats.mu.Lock()
		b.stats.UpdatesHandled++
		b.stats.mu.Unlock()
		log.Debug("command handled", "duration", time.Since(start))
	}
}

func (b *Bot) countError() {
	b.stats.mu.Lock()
	b.stats.ErrorsCount++
	b.stats.mu.Unlock()
}

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK MODE
// ══════════════════════════════════════════════════════════════════════════════

// WebhookHandler returns the HTTP handler receiving webhook deliveries.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if b.config.WebhookSecret != "" {
			got := r.Header.Get(webhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(b.config.WebhookSecret)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}

		var update telegram.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		_ = b.Dispatch(r.Context(), &update)
		w.WriteHeader(http.StatusOK)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// GetStats returns current bot statistics.
func (b *Bot) GetStats() map[string]any {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	commands := make(map[string]int64, len(b.stats.CommandsCount))
	for k, v := range b.stats.CommandsCount {
		commands[k] = v
	}

	stats := map[string]any{
		"updates_received": b.stats.UpdatesReceived,
		"updates_handled":  b.stats.UpdatesHandled,
		"updates_dropped":  b.stats.UpdatesDropped,
		"errors_count":     b.stats.ErrorsCount,
		"commands_count":   commands,
		"running":          b.IsRunning(),
	}
	if !b.stats.StartedAt.IsZero() {
		stats["started_at"] = b.stats.StartedAt
		stats["uptime"] = time.Since(b.stats.StartedAt).String()
	}
	return stats
}
