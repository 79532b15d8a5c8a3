// Package usagetest holds the behaviour every usage.Store and
// usage.ChatRegistry implementation must share.
package usagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// consume runs one quota check through the store the way the limiter does.
func consume(ctx context.Context, store usage.Store, chatID usage.ChatID, today timeutil.Date) (usage.Decision, error) {
	var decision usage.Decision
	err := store.CompareAndUpdate(ctx, chatID, func(current *usage.Record) (*usage.Record, error) {
		var next *usage.Record
		decision, next = usage.Evaluate(chatID, current, today)
		return next, nil
	})
	return decision, err
}

// RunStoreSuite exercises a usage.Store. newStore must return an empty store.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) usage.Store) {
	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		rec, err := store.Get(context.Background(), 101)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("daily sequence and rollover", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		const chat usage.ChatID = 102
		day := timeutil.Date("2025-05-28")

		expect := []usage.Decision{
			{Allowed: true, Remaining: 1},
			{Allowed: true, Remaining: 0},
			{Allowed: false, Remaining: 0},
		}
		for i, want := range expect {
			got, err := consume(ctx, store, chat, day)
			require.NoError(t, err)
			assert.Equal(t, want, got, "call %d", i+1)
		}

		rec, err := store.Get(ctx, chat)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, 2, rec.Count)
		assert.Equal(t, day, rec.LastDate)

		got, err := consume(ctx, store, chat, day.AddDays(1))
		require.NoError(t, err)
		assert.Equal(t, usage.Decision{Allowed: true, Remaining: 1}, got)

		rec, err = store.Get(ctx, chat)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.Count)
		assert.Equal(t, day.AddDays(1), rec.LastDate)
	})

	t.Run("nil update leaves storage untouched", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		err := store.CompareAndUpdate(ctx, 103, func(current *usage.Record) (*usage.Record, error) {
			return nil, nil
		})
		require.NoError(t, err)

		rec, err := store.Get(ctx, 103)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("concurrent calls never exceed the cap", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		const chat usage.ChatID = 104
		day := timeutil.Date("2025-05-28")

		const n = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
			errs    []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := consume(ctx, store, chat, day)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				if d.Allowed {
					allowed++
				}
			}()
		}
		wg.Wait()

		require.Empty(t, errs)
		assert.Equal(t, usage.DailyCap, allowed)
	})

	t.Run("chats are independent", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		day := timeutil.Date("2025-05-28")

		for i := 0; i < 2; i++ {
			_, err := consume(ctx, store, 105, day)
			require.NoError(t, err)
		}
		got, err := consume(ctx, store, 106, day)
		require.NoError(t, err)
		assert.True(t, got.Allowed)
	})
}

// RunRegistrySuite exercises a usage.ChatRegistry. newRegistry must return an
// empty registry.
func RunRegistrySuite(t *testing.T, newRegistry func(t *testing.T) usage.ChatRegistry) {
	ctx := context.Background()
	reg := newRegistry(t)

	created, err := reg.Register(ctx, 201)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = reg.Register(ctx, 201)
	require.NoError(t, err)
	assert.False(t, created, "second registration must be a no-op")

	created, err = reg.Register(ctx, 202)
	require.NoError(t, err)
	assert.True(t, created, "chats are registered independently")
}
