package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/pkg/retry"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

const (
	fieldCount = "count"
	fieldDate  = "date"

	// recordSlack keeps a record around past midnight so the usage endpoint
	// can still show the previous day.
	recordSlack = time.Hour
)

// UsageStore implements usage.Store with optimistic WATCH/MULTI transactions.
type UsageStore struct {
	client  *Client
	retrier *retry.Retrier
	clock   timeutil.Clock
}

// NewUsageStore creates a store on a connected client.
func NewUsageStore(client *Client) *UsageStore {
	return &UsageStore{
		client: client,
		retrier: retry.DatabaseRetrier().With(
			retry.WithMaxAttempts(100),
			retry.WithRetryIf(func(err error) bool { return errors.Is(err, redis.TxFailedErr) }),
		),
		clock: timeutil.SystemClock(),
	}
}

var _ usage.Store = (*UsageStore)(nil)

// Get implements usage.Store.
func (s *UsageStore) Get(ctx context.Context, chatID usage.ChatID) (*usage.Record, error) {
	fields, err := s.client.rdb.HGetAll(ctx, s.client.usageKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get usage %d: %w", chatID, err)
	}
	rec, err := decodeRecord(chatID, fields)
	if err != nil {
		return nil, fmt.Errorf("redis: get usage %d: %w", chatID, err)
	}
	return rec, nil
}

// CompareAndUpdate implements usage.Store. The write is discarded by Redis if
// another client touched the key after WATCH, and the whole step is retried.
func (s *UsageStore) CompareAndUpdate(ctx context.Context, chatID usage.ChatID, fn usage.UpdateFunc) error {
	key := s.client.usageKey(chatID)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		current, err := decodeRecord(chatID, fields)
		if err != nil {
			return retry.Permanent(err)
		}

		next, err := fn(current)
		if err != nil {
			return retry.Permanent(err)
		}
		if next == nil {
			return nil
		}

		ttl := timeutil.UntilMidnight(s.clock.Now()) + recordSlack
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldCount, next.Count, fieldDate, next.LastDate.String())
			pipe.Expire(ctx, key, ttl)
			return nil
		})
		return err
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.client.rdb.Watch(ctx, txf, key)
	})
	if err != nil {
		return fmt.Errorf("redis: update usage %d: %w", chatID, err)
	}
	return nil
}

func decodeRecord(chatID usage.ChatID, fields map[string]string) (*usage.Record, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(fields[fieldCount])
	if err != nil {
		return nil, fmt.Errorf("corrupt count %q: %w", fields[fieldCount], err)
	}
	rec := &usage.Record{ChatID: chatID, Count: count}
	if raw := fields[fieldDate]; raw != "" {
		date, err := timeutil.ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt date %q: %w", raw, err)
		}
		rec.LastDate = date
	}
	return rec, nil
}

// ChatRegistry implements usage.ChatRegistry on a Redis set.
type ChatRegistry struct {
	client *Client
}

// NewChatRegistry creates a registry on a connected client.
func NewChatRegistry(client *Client) *ChatRegistry {
	return &ChatRegistry{client: client}
}

var _ usage.ChatRegistry = (*ChatRegistry)(nil)

// Register implements usage.ChatRegistry.
func (r *ChatRegistry) Register(ctx context.Context, chatID usage.ChatID) (bool, error) {
	added, err := r.client.rdb.SAdd(ctx, r.client.chatsKey(), int64(chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: register chat %d: %w", chatID, err)
	}
	return added == 1, nil
}
