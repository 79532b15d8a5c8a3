package handler

import (
	"context"

	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
)

// StartHandler handles /start. The welcome text is sent once per chat.
type StartHandler struct {
	register *command.RegisterChatHandler
}

// NewStartHandler creates a new StartHandler.
func NewStartHandler(register *command.RegisterChatHandler) *StartHandler {
	return &StartHandler{register: register}
}

// Handle processes the /start command.
func (h *StartHandler) Handle(ctx context.Context, _ Sender, req Request) (*Response, error) {
	res, err := h.register.Handle(ctx, command.RegisterChatCommand{ChatID: usage.ChatID(req.ChatID)})
	if err != nil {
		return nil, err
	}

	text := msgAlreadyStarted
	if res.FirstTime {
		text = msgWelcome
	}
	return &Response{Text: text, ParseMode: telegram.ParseModeMarkdown}, nil
}
