package handler

import (
	"context"
	"log/slog"

	"github.com/gradesbot/gradesbot/internal/application/query"
	"github.com/gradesbot/gradesbot/internal/interface/presenter"
)

// FinalHandler handles /final, the published course grade. It is a single
// roster lookup and does not use the daily quota.
type FinalHandler struct {
	finals    *query.GetFinalGradeHandler
	presenter *presenter.ReportPresenter
	logger    *slog.Logger
}

// NewFinalHandler creates a new FinalHandler.
func NewFinalHandler(finals *query.GetFinalGradeHandler, p *presenter.ReportPresenter, logger *slog.Logger) *FinalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FinalHandler{finals: finals, presenter: p, logger: logger}
}

// Handle processes the /final command.
func (h *FinalHandler) Handle(ctx context.Context, _ Sender, req Request) (*Response, error) {
	account, reply := accountReply("final", req.Args)
	if reply != nil {
		return reply, nil
	}

	res, err := h.finals.Handle(ctx, query.GetFinalGradeQuery{AccountNumber: account.String()})
	if err != nil {
		h.logger.Warn("final grade lookup failed", "chat_id", req.ChatID, "error", err)
		return errorReply(err), nil
	}
	return &Response{Text: h.presenter.FormatFinalGrade(res)}, nil
}
