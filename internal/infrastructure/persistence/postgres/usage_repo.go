package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/pkg/retry"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// UsageRepository implements usage.Store on the usage table.
type UsageRepository struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(conn *Connection) *UsageRepository {
	return &UsageRepository{
		conn:    conn,
		retrier: retry.DatabaseRetrier().With(retry.WithRetryIf(isTransient)),
	}
}

// Compile-time check.
var _ usage.Store = (*UsageRepository)(nil)

const (
	selectUsageSQL = `
		SELECT request_count, last_request_date
		FROM usage
		WHERE chat_id = $1`

	upsertUsageSQL = `
		INSERT INTO usage (chat_id, request_count, last_request_date, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (chat_id) DO UPDATE SET
			request_count = EXCLUDED.request_count,
			last_request_date = EXCLUDED.last_request_date,
			updated_at = NOW()`
)

// Get implements usage.Store.
func (r *UsageRepository) Get(ctx context.Context, chatID usage.ChatID) (*usage.Record, error) {
	rec, err := scanUsage(r.conn.QueryRow(ctx, selectUsageSQL, int64(chatID)), chatID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get usage %d: %w", chatID, err)
	}
	return rec, nil
}

// CompareAndUpdate implements usage.Store. A transaction-scoped advisory lock
// keyed by the chat id serialises callers, including the first call for a
// chat that has no row yet and so nothing to lock with FOR UPDATE.
func (r *UsageRepository) CompareAndUpdate(ctx context.Context, chatID usage.ChatID, fn usage.UpdateFunc) error {
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", int64(chatID)); err != nil {
				return err
			}

			current, err := scanUsage(tx.QueryRow(ctx, selectUsageSQL+" FOR UPDATE", int64(chatID)), chatID)
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

			_, err = tx.Exec(ctx, upsertUsageSQL, int64(chatID), next.Count, next.LastDate.Time())
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("postgres: update usage %d: %w", chatID, err)
	}
	return nil
}

func scanUsage(row pgx.Row, chatID usage.ChatID) (*usage.Record, error) {
	var (
		count int
		last  *time.Time
	)
	if err := row.Scan(&count, &last); err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}

	rec := &usage.Record{ChatID: chatID, Count: count}
	if last != nil {
		rec.LastDate = timeutil.DateFromTime(*last)
	}
	return rec, nil
}
