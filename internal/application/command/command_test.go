package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/internal/infrastructure/persistence/memory"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// movableClock is a test clock that can be advanced.
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *movableClock {
	return &movableClock{now: time.Date(2025, 5, 28, 10, 0, 0, 0, timeutil.Zone())}
}

func TestCheckUsage_DailySequenceAndRollover(t *testing.T) {
	clock := newClock()
	h := NewCheckUsageHandler(memory.NewUsageStore(), clock, nil)
	ctx := context.Background()
	cmd := CheckUsageCommand{ChatID: 7}

	want := []usage.Decision{
		{Allowed: true, Remaining: 1},
		{Allowed: true, Remaining: 0},
		{Allowed: false, Remaining: 0},
		{Allowed: false, Remaining: 0},
	}
	for i, w := range want {
		got, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
		assert.Equal(t, w, got, "call %d", i+1)
	}

	// 23:59 the same day is still denied.
	clock.advance(13*time.Hour + 59*time.Minute)
	got, err := h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, got.Allowed)

	clock.advance(2 * time.Minute)
	got, err = h.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, usage.Decision{Allowed: true, Remaining: 1}, got)
}

func TestCheckUsage_ConcurrentCallsRespectCap(t *testing.T) {
	h := NewCheckUsageHandler(memory.NewUsageStore(), newClock(), nil)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := h.Handle(context.Background(), CheckUsageCommand{ChatID: 9})
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(usage.DailyCap), allowed.Load())
	assert.Equal(t, 0, h.locks.size())
}

func TestCheckUsage_InvalidChat(t *testing.T) {
	h := NewCheckUsageHandler(memory.NewUsageStore(), newClock(), nil)
	_, err := h.Handle(context.Background(), CheckUsageCommand{})
	assert.True(t, shared.IsValidation(err))
}

type failingStore struct{}

func (failingStore) Get(context.Context, usage.ChatID) (*usage.Record, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) CompareAndUpdate(context.Context, usage.ChatID, usage.UpdateFunc) error {
	return errors.New("disk on fire")
}

func TestCheckUsage_StoreFailureIsRetryable(t *testing.T) {
	h := NewCheckUsageHandler(failingStore{}, newClock(), nil)
	_, err := h.Handle(context.Background(), CheckUsageCommand{ChatID: 1})
	require.Error(t, err)
	assert.True(t, shared.IsRetryable(err))
}

func TestRegisterChat(t *testing.T) {
	h := NewRegisterChatHandler(memory.NewChatRegistry())
	ctx := context.Background()

	res, err := h.Handle(ctx, RegisterChatCommand{ChatID: 3})
	require.NoError(t, err)
	assert.True(t, res.FirstTime)

	res, err = h.Handle(ctx, RegisterChatCommand{ChatID: 3})
	require.NoError(t, err)
	assert.False(t, res.FirstTime)

	_, err = h.Handle(ctx, RegisterChatCommand{})
	assert.True(t, shared.IsValidation(err))
}

// overlapStore flags two CompareAndUpdate calls running at once.
type overlapStore struct {
	usage.Store
	inside  atomic.Int32
	overlap atomic.Bool
}

func (s *overlapStore) CompareAndUpdate(ctx context.Context, chatID usage.ChatID, fn usage.UpdateFunc) error {
	if s.inside.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inside.Add(-1)
	time.Sleep(time.Millisecond)
	return s.Store.CompareAndUpdate(ctx, chatID, fn)
}

func TestCheckUsage_SerialisesSameChat(t *testing.T) {
	store := &overlapStore{Store: memory.NewUsageStore()}
	h := NewCheckUsageHandler(store, newClock(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), CheckUsageCommand{ChatID: 7})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, store.overlap.Load())
}
