package query

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET REPORT QUERY
// Builds the score report of one account: roster check, then the six category
// lookups in parallel.
// ══════════════════════════════════════════════════════════════════════════════

// GetReportQuery contains the parameters of a report request.
type GetReportQuery struct {
	// AccountNumber is the raw account identifier as typed by the student.
	AccountNumber string
}

// GetReportHandler handles report requests.
type GetReportHandler struct {
	source       grade.Source
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewGetReportHandler creates a new handler. A zero fetchTimeout uses
// DefaultFetchTimeout.
func NewGetReportHandler(source grade.Source, fetchTimeout time.Duration, logger *slog.Logger) *GetReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetReportHandler{
		source:       source,
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// errFinalRoundGraded stops the fan-out once a first-round final is known.
var errFinalRoundGraded = errors.New("first-round final graded")

// Handle builds the report. It returns an error of kind ErrValidation for a
// malformed account, ErrNotFound when the roster or any category lacks a row
// and ErrUpstreamUnavailable when a lookup fails transiently.
func (h *GetReportHandler) Handle(ctx context.Context, q GetReportQuery) (*grade.Report, error) {
	account, err := grade.ParseAccountID(q.AccountNumber)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if _, err := findRoster(ctx, h.source, h.fetchTimeout, account); err != nil {
		return nil, err
	}

	report, err := h.collect(ctx, account)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Warn("report failed", "duration", time.Since(start), "error", err)
		}
		return nil, err
	}

	h.logger.Debug("report built",
		"account", logger.RedactAccount(account.String()),
		"first_round_only", report.IsFirstRoundOnly(),
		"duration", time.Since(start),
	)
	return report, nil
}

// collect fans out the six category lookups. A present first-round final
// wins: it cancels the other lookups and their failures are ignored.
func (h *GetReportHandler) collect(ctx context.Context, account grade.AccountID) (*grade.Report, error) {
	filter := grade.TextEquals(grade.PropAccount, account.String())

	var (
		mu         sync.Mutex
		rows       = make(map[grade.Category]*grade.Record, len(grade.GradedCategories))
		firstRound *float64
		finalDone  = make(chan struct{})
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(finalDone)

		rec, err := fetchOne(gctx, h.source, h.fetchTimeout, grade.CategoryFinal, filter)
		if err != nil {
			return categoryError(grade.CategoryFinal, err)
		}
		if score := grade.FirstRoundScore(rec); score != nil {
			firstRound = score
			return errFinalRoundGraded
		}

		mu.Lock()
		rows[grade.CategoryFinal] = rec
		mu.Unlock()
		return nil
	})

	for _, category := range grade.GradedCategories {
		if category == grade.CategoryFinal {
			continue
		}
		g.Go(func() error {
			rec, err := fetchOne(gctx, h.source, h.fetchTimeout, category, filter)
			if err != nil {
				// The final-round row decides whether this failure matters.
				<-finalDone
				if firstRound != nil {
					return nil
				}
				return categoryError(category, err)
			}

			mu.Lock()
			rows[category] = rec
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errFinalRoundGraded):
		return grade.FinalRoundReport(account, *firstRound), nil
	case err != nil:
		return nil, err
	}
	return grade.BuildReport(account, rows)
}

func categoryError(category grade.Category, err error) error {
	if shared.IsNotFound(err) {
		return grade.MissingCategoryError(category)
	}
	return err
}
