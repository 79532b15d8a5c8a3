package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
)

// HelpHandler handles /help.
type HelpHandler struct {
	text string
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler() *HelpHandler {
	lines := []string{
		"_Envía tu número de cuenta con el formato:_",
		"`/consultar [número]`",
		"",
		"📝 *Ejemplo:*",
		"`/consultar 321176898`",
		"",
		fmt.Sprintf("🔐 Límite diario: %d consultas por día", usage.DailyCap),
	}
	return &HelpHandler{text: strings.Join(lines, "\n")}
}

// Handle returns the usage instructions.
func (h *HelpHandler) Handle(_ context.Context, _ Sender, _ Request) (*Response, error) {
	return &Response{Text: h.text, ParseMode: telegram.ParseModeMarkdownV2}, nil
}
