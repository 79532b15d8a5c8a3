package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gradesbot/gradesbot/internal/application/command"
	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/infrastructure/external/telegram"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSULTAR HANDLER
// /consultar <número>: validate, consume quota, announce, fetch, report.
// ══════════════════════════════════════════════════════════════════════════════

// ConsultarHandler handles /consultar.
type ConsultarHandler struct {
	limiter   *command.CheckUsageHandler
	reports   *query.GetReportHandler
	presenter *presenter.ReportPresenter
	logger    *slog.Logger
}

// NewConsultarHandler creates a new ConsultarHandler.
func NewConsultarHandler(
	limiter *command.CheckUsageHandler,
	reports *query.GetReportHandler,
	p *presenter.ReportPresenter,
	logger *slog.Logger,
) *ConsultarHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsultarHandler{
		limiter:   limiter,
		reports:   reports,
		presenter: p,
		logger:    logger,
	}
}

// Handle processes the /consultar command. Malformed arguments do not count
// against the daily quota; failed lookups after the check do.
func (h *ConsultarHandler) Handle(ctx context.Context, sender Sender, req Request) (*Response, error) {
	account, reply := accountReply("consultar", req.Args)
	if reply != nil {
		return reply, nil
	}

	h.logger.Info("report requested", "chat_id", req.ChatID)

	decision, err := h.limiter.Handle(ctx, command.CheckUsageCommand{ChatID: usage.ChatID(req.ChatID)})
	if err != nil {
		h.logger.Error("usage check failed", "chat_id", req.ChatID, "error", err)
		return errorReply(err), nil
	}
	if !decision.Allowed {
		return &Response{Text: msgCapReached, ParseMode: telegram.ParseModeMarkdown}, nil
	}

	progress := telegram.SendMessageParams{
		ChatID: req.ChatID,
		Text:   fmt.Sprintf("🔍 Buscando calificaciones para: %s...", account),
	}
	if _, err := sender.SendMessage(ctx, progress); err != nil {
		return nil, fmt.Errorf("send progress: %w", err)
	}

	report, err := h.reports.Handle(ctx, query.GetReportQuery{AccountNumber: account.String()})
	if err != nil {
		h.logger.Warn("report lookup failed", "chat_id", req.ChatID, "error", err)
		return errorReply(err), nil
	}

	text := fmt.Sprintf("✅ %s\n\n\nConsultas restantes hoy: %d", h.presenter.FormatReport(report), decision.Remaining)
	return &Response{Text: text, ParseMode: telegram.ParseModeMarkdown}, nil
}
