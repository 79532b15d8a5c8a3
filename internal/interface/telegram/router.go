package telegram

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
	"github.com/gradesbot/gradesbot/internal/interface/telegram/handler"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes commands to handlers and delivers their responses.
// ══════════════════════════════════════════════════════════════════════════════

// CommandContext contains context for command handling.
type CommandContext struct {
	// ChatID is the chat ID where the command was sent.
	ChatID int64

	// MessageID is the ID of the message containing the command.
	MessageID int64

	// Args is the command arguments (text after the command).
	Args string

	// Sender delivers responses to the chat.
	Sender handler.Sender
}

// Router routes Telegram commands to handlers.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]handler.CommandHandler
}

// NewRouter creates a new router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		handlers: make(map[string]handler.CommandHandler),
	}
}

// RegisterCommand registers a handler for a command given without the leading "/".
func (r *Router) RegisterCommand(command string, h handler.CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[command] = h
}

// HasCommand reports whether command has a handler.
func (r *Router) HasCommand(command string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[command]
	return ok
}

// HandleCommand runs the command's handler and sends its response. Unknown
// commands are ignored.
func (r *Router) HandleCommand(ctx context.Context, command string, cmdCtx CommandContext) error {
	r.mu.RLock()
	h, ok := r.handlers[command]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for command", "command", command)
		return nil
	}

	resp, err := h.Handle(ctx, cmdCtx.Sender, handler.Request{ChatID: cmdCtx.ChatID, Args: cmdCtx.Args})
	if err != nil {
		return err
	}
	if resp == nil || resp.Text == "" {
		return nil
	}
	return r.sendResponse(ctx, cmdCtx, resp)
}

// sendResponse sends the handler's final message.
func (r *Router) sendResponse(ctx context.Context, cmdCtx CommandContext, resp *handler.Response) error {
	_, err := cmdCtx.Sender.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:            cmdCtx.ChatID,
		Text:              resp.Text,
		ParseMode:         resp.ParseMode,
		DisableWebPreview: true,
	})
	return err
}

// GetRegisteredCommands returns the registered commands, sorted.
func (r *Router) GetRegisteredCommands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]string, 0, len(r.handlers))
	for cmd := range r.handlers {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}
