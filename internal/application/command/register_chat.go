package command

import (
	"context"

	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
)

// RegisterChatCommand marks a chat as started.
type RegisterChatCommand struct {
	ChatID usage.ChatID
}

// RegisterChatResult tells whether this was the chat's first start.
type RegisterChatResult struct {
	FirstTime bool
}

// RegisterChatHandler gates the welcome message to the first /start.
type RegisterChatHandler struct {
	registry usage.ChatRegistry
}

// NewRegisterChatHandler creates a new handler.
func NewRegisterChatHandler(registry usage.ChatRegistry) *RegisterChatHandler {
	return &RegisterChatHandler{registry: registry}
}

// Handle registers the chat. Repeated calls are no-ops reporting FirstTime false.
func (h *RegisterChatHandler) Handle(ctx context.Context, cmd RegisterChatCommand) (*RegisterChatResult, error) {
	if !cmd.ChatID.IsValid() {
		return nil, usage.ErrInvalidChatID
	}

	created, err := h.registry.Register(ctx, cmd.ChatID)
	if err != nil {
		return nil, shared.WrapError("command", "RegisterChat", shared.ErrUpstreamUnavailable,
			"chat registry unavailable", err)
	}
	return &RegisterChatResult{FirstTime: created}, nil
}
