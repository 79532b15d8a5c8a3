package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/pkg/retry"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// UsageStore implements usage.Store.
type UsageStore struct {
	db      *DB
	retrier *retry.Retrier
}

// NewUsageStore creates a store on an open database.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{
		db:      db,
		retrier: retry.DatabaseRetrier().With(retry.WithRetryIf(isBusy)),
	}
}

var _ usage.Store = (*UsageStore)(nil)

const selectUsage = `SELECT request_count, last_request_date FROM usage WHERE chat_id = ?`

// Get implements usage.Store.
func (s *UsageStore) Get(ctx context.Context, chatID usage.ChatID) (*usage.Record, error) {
	rec, err := scanUsage(s.db.sql.QueryRowContext(ctx, selectUsage, int64(chatID)), chatID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get usage %d: %w", chatID, err)
	}
	return rec, nil
}

// CompareAndUpdate implements usage.Store.
func (s *UsageStore) CompareAndUpdate(ctx context.Context, chatID usage.ChatID, fn usage.UpdateFunc) error {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.db.withTx(ctx, func(tx *sql.Tx) error {
			current, err := scanUsage(tx.QueryRowContext(ctx, selectUsage, int64(chatID)), chatID)
			if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return retry.Permanent(err)
			}
			if next == nil {
				return nil
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO usage (chat_id, request_count, last_request_date)
				VALUES (?, ?, ?)
				ON CONFLICT(chat_id) DO UPDATE SET
					request_count = excluded.request_count,
					last_request_date = excluded.last_request_date`,
				int64(chatID), next.Count, next.LastDate.String(),
			)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("sqlite: update usage %d: %w", chatID, err)
	}
	return nil
}

func scanUsage(row *sql.Row, chatID usage.ChatID) (*usage.Record, error) {
	var (
		count int
		last  sql.NullString
	)
	if err := row.Scan(&count, &last); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rec := &usage.Record{ChatID: chatID, Count: count}
	if last.Valid && last.String != "" {
		date, err := timeutil.ParseDate(last.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_request_date %q: %w", last.String, err)
		}
		rec.LastDate = date
	}
	return rec, nil
}
