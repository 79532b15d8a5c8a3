package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/domain/usage/usagetest"
)

// testClient connects to REDIS_TEST_ADDR under a key prefix unique to the
// test. Tests are skipped when the variable is unset.
func testClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	cfg := DefaultConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = fmt.Sprintf("gradesbot-test:%d:", time.Now().UnixNano())

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		iter := client.rdb.Scan(ctx, 0, cfg.KeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			client.rdb.Del(ctx, iter.Val())
		}
		_ = client.Close()
	})
	return client
}

func TestUsageStore(t *testing.T) {
	usagetest.RunStoreSuite(t, func(t *testing.T) usage.Store {
		return NewUsageStore(testClient(t))
	})
}

func TestChatRegistry(t *testing.T) {
	usagetest.RunRegistrySuite(t, func(t *testing.T) usage.ChatRegistry {
		return NewChatRegistry(testClient(t))
	})
}

func TestUsageStore_SetsExpiry(t *testing.T) {
	client := testClient(t)
	store := NewUsageStore(client)
	ctx := context.Background()

	err := store.CompareAndUpdate(ctx, 9, func(*usage.Record) (*usage.Record, error) {
		return &usage.Record{Count: 1, LastDate: "2025-05-28"}, nil
	})
	require.NoError(t, err)

	ttl, err := client.rdb.TTL(ctx, client.usageKey(9)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 25*time.Hour)
}

func TestDecodeRecord(t *testing.T) {
	rec, err := decodeRecord(1, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = decodeRecord(1, map[string]string{fieldCount: "2", fieldDate: "2025-05-28"})
	require.NoError(t, err)
	assert.Equal(t, &usage.Record{ChatID: 1, Count: 2, LastDate: "2025-05-28"}, rec)

	_, err = decodeRecord(1, map[string]string{fieldCount: "x"})
	assert.Error(t, err)
}
