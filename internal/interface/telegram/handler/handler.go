// Package handler contains Telegram command handlers.
// Each handler follows the pattern: receive update → validate → call application layer → format response.
package handler

import (
	"context"
	"errors"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Sender delivers messages to a chat. *telegram.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
}

// Request carries what a command handler needs from the incoming message.
type Request struct {
	// ChatID is the chat the command was sent from.
	ChatID int64

	// Args is the text after the command, trimmed.
	Args string
}

// Response is the final message a handler wants delivered.
type Response struct {
	Text      string
	ParseMode string
}

// CommandHandler is implemented by every bot command.
type CommandHandler interface {
	Handle(ctx context.Context, sender Sender, req Request) (*Response, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

const (
	msgWelcome = "📚 *Bot de Calificaciones*\n\n" +
		"Envía tu número de cuenta con el formato:\n/consultar [número]\n\n" +
		"📝 *Ejemplo:*\n/consultar 321176898"

	msgAlreadyStarted = "⚠️ Ya has iniciado el bot antes. Usa /help para ver las instrucciones."

	msgCapReached = "❌ *Límite diario alcanzado*\n\n" +
		"Solo puedes realizar 2 consultas por día.\n\nVuelve mañana."

	msgGenericError = "⚠️ Error al procesar tu solicitud. Intenta más tarde."
)

func missingAccountMessage(command string) string {
	return "❌ *Falta tu número de cuenta.*\n\n" +
		"Formato requerido:\n/" + command + " [número]\n\n" +
		"📝 Ejemplo: `/" + command + " 321176898`"
}

func invalidFormatMessage(command string) string {
	return "❌ *Formato inválido*\n\n" +
		"El número debe:\n- Tener 8-10 dígitos\n- Solo números\n\n" +
		"📝 Ejemplo: `/" + command + " 321176898`"
}

// accountReply validates the command argument and returns the message to
// send back when it is unusable.
func accountReply(command, args string) (grade.AccountID, *Response) {
	account, err := grade.ParseAccountID(args)
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, grade.ErrAccountMissing):
		return "", &Response{Text: missingAccountMessage(command), ParseMode: telegram.ParseModeMarkdown}
	default:
		return "", &Response{Text: invalidFormatMessage(command), ParseMode: telegram.ParseModeMarkdown}
	}
}

// errorReply turns a failed lookup into a plain-text reply. Only student
// mistakes are shown verbatim.
func errorReply(err error) *Response {
	if shared.IsValidation(err) || shared.IsNotFound(err) {
		return &Response{Text: "⚠️ " + presenter.ErrorMessage(err)}
	}
	return &Response{Text: msgGenericError}
}
