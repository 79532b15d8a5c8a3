// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
	"github.com/gradesbot/gradesbot/internal/domain/shared"
)

// DefaultFetchTimeout bounds each record store lookup.
const DefaultFetchTimeout = 8 * time.Second

// fetchOne runs one lookup under its own timeout. A lookup cut short by that
// timeout is reported as ErrUpstreamUnavailable whatever the source returned.
func fetchOne(ctx context.Context, source grade.Source, timeout time.Duration, category grade.Category, filter grade.Filter) (*grade.Record, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec, err := source.FindOne(fetchCtx, category, filter)
	if err == nil {
		return rec, nil
	}
	if ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && !shared.IsRetryable(err) {
		return nil, shared.WrapError("query", "fetch", shared.ErrUpstreamUnavailable,
			"lookup in "+string(category)+" timed out", err)
	}
	return nil, err
}

// findRoster looks an account up in the roster by numeric equality.
func findRoster(ctx context.Context, source grade.Source, timeout time.Duration, account grade.AccountID) (grade.RosterEntry, error) {
	n, err := account.Number()
	if err != nil {
		return grade.RosterEntry{}, err
	}

	rec, err := fetchOne(ctx, source, timeout, grade.CategoryRoster, grade.NumberEquals(grade.PropAccount, n))
	if err != nil {
		if shared.IsNotFound(err) {
			return grade.RosterEntry{}, grade.ErrNotInRoster
		}
		return grade.RosterEntry{}, err
	}
	return grade.RosterEntryFrom(account, rec), nil
}
