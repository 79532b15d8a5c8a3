package command

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/moby/locker"

	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK USAGE COMMAND
// Consumes one grade query from a chat's daily quota.
// ══════════════════════════════════════════════════════════════════════════════

// CheckUsageCommand identifies the chat asking for a grade query.
type CheckUsageCommand struct {
	ChatID usage.ChatID
}

// Validate validates the command.
func (c CheckUsageCommand) Validate() error {
	if !c.ChatID.IsValid() {
		return usage.ErrInvalidChatID
	}
	return nil
}

// CheckUsageHandler is the usage limiter. Calls for the same chat are
// serialised in-process and the store applies each step atomically, so the
// cap holds across processes sharing a store too.
type CheckUsageHandler struct {
	store  usage.Store
	clock  timeutil.Clock
	locks  *locker.Locker
	logger *slog.Logger
}

// NewCheckUsageHandler creates a new limiter. A nil clock uses the system clock.
func NewCheckUsageHandler(store usage.Store, clock timeutil.Clock, logger *slog.Logger) *CheckUsageHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckUsageHandler{
		store:  store,
		clock:  clock,
		locks:  locker.New(),
		logger: logger,
	}
}

// Handle records one query and returns the decision. A denial is a normal
// result with Allowed false, not an error.
func (h *CheckUsageHandler) Handle(ctx context.Context, cmd CheckUsageCommand) (usage.Decision, error) {
	if err := cmd.Validate(); err != nil {
		return usage.Decision{}, err
	}

	key := strconv.FormatInt(int64(cmd.ChatID), 10)
	h.locks.Lock(key)
	defer func() { _ = h.locks.Unlock(key) }()

	today := timeutil.Today(h.clock)

	var decision usage.Decision
	err := h.store.CompareAndUpdate(ctx, cmd.ChatID, func(current *usage.Record) (*usage.Record, error) {
		var next *usage.Record
		decision, next = usage.Evaluate(cmd.ChatID, current, today)
		return next, nil
	})
	if err != nil {
		h.logger.Error("usage store failed", "chat_id", int64(cmd.ChatID), "error", err)
		return usage.Decision{}, shared.WrapError("command", "CheckUsage", shared.ErrUpstreamUnavailable,
			"usage store unavailable", err)
	}

	if !decision.Allowed {
		h.logger.Info("daily cap reached", "chat_id", int64(cmd.ChatID), "date", today.String())
	}
	return decision, nil
}
