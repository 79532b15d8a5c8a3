package query

import (
	"context"
	"time"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
)

// GetFinalGradeQuery asks for the free-text final course grade of an account.
type GetFinalGradeQuery struct {
	AccountNumber string
}

// FinalGradeResult is the roster's final course grade. Final is empty when
// the grade has not been published.
type FinalGradeResult struct {
	Account grade.AccountID `json:"account"`
	Final   string          `json:"final"`
}

// GetFinalGradeHandler handles final grade requests.
type GetFinalGradeHandler struct {
	source       grade.Source
	fetchTimeout time.Duration
}

// NewGetFinalGradeHandler creates a new handler.
func NewGetFinalGradeHandler(source grade.Source, fetchTimeout time.Duration) *GetFinalGradeHandler {
	return &GetFinalGradeHandler{source: source, fetchTimeout: fetchTimeout}
}

// Handle returns the final grade, or a NotFound error when the account is not
// in the roster.
func (h *GetFinalGradeHandler) Handle(ctx context.Context, q GetFinalGradeQuery) (*FinalGradeResult, error) {
	account, err := grade.ParseAccountID(q.AccountNumber)
	if err != nil {
		return nil, err
	}

	entry, err := findRoster(ctx, h.source, h.fetchTimeout, account)
	if err != nil {
		return nil, err
	}
	return &FinalGradeResult{Account: account, Final: entry.FinalGrade}, nil
}
