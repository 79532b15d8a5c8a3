package query

import (
	"context"
	"time"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
)

// VerifyEnrollmentQuery checks that an account is in the roster.
type VerifyEnrollmentQuery struct {
	AccountNumber string
}

// EnrollmentResult carries the roster email of an enrolled account.
type EnrollmentResult struct {
	Account grade.AccountID `json:"account"`
	Email   string          `json:"email"`
}

// VerifyEnrollmentHandler handles enrollment checks.
type VerifyEnrollmentHandler struct {
	source       grade.Source
	fetchTimeout time.Duration
}

// NewVerifyEnrollmentHandler creates a new handler.
func NewVerifyEnrollmentHandler(source grade.Source, fetchTimeout time.Duration) *VerifyEnrollmentHandler {
	return &VerifyEnrollmentHandler{source: source, fetchTimeout: fetchTimeout}
}

// Handle returns the roster email. It fails with ErrNotFound when the account
// is not enrolled and ErrInvalidFormat when the email property is malformed.
func (h *VerifyEnrollmentHandler) Handle(ctx context.Context, q VerifyEnrollmentQuery) (*EnrollmentResult, error) {
	account, err := grade.ParseAccountID(q.AccountNumber)
	if err != nil {
		return nil, err
	}

	entry, err := findRoster(ctx, h.source, h.fetchTimeout, account)
	if err != nil {
		return nil, err
	}

	email, err := entry.VerifiedEmail()
	if err != nil {
		return nil, err
	}
	return &EnrollmentResult{Account: account, Email: email}, nil
}
