// Package memory provides in-process usage storage. Data does not survive a
// restart, so it is meant for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
)

// UsageStore keeps usage records in a map guarded by a single mutex.
type UsageStore struct {
	mu      sync.Mutex
	records map[usage.ChatID]usage.Record
}

// NewUsageStore creates an empty store.
func NewUsageStore() *UsageStore {
	return &UsageStore{records: make(map[usage.ChatID]usage.Record)}
}

// Get implements usage.Store.
func (s *UsageStore) Get(_ context.Context, chatID usage.ChatID) (*usage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[chatID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// CompareAndUpdate implements usage.Store.
func (s *UsageStore) CompareAndUpdate(ctx context.Context, chatID usage.ChatID, fn usage.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current *usage.Record
	if rec, ok := s.records[chatID]; ok {
		current = &rec
	}

	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	next.ChatID = chatID
	s.records[chatID] = *next
	return nil
}

// ChatRegistry keeps started chats in a set.
type ChatRegistry struct {
	mu    sync.Mutex
	chats map[usage.ChatID]struct{}
}

// NewChatRegistry creates an empty registry.
func NewChatRegistry() *ChatRegistry {
	return &ChatRegistry{chats: make(map[usage.ChatID]struct{})}
}

// Register implements usage.ChatRegistry.
func (r *ChatRegistry) Register(_ context.Context, chatID usage.ChatID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chats[chatID]; ok {
		return false, nil
	}
	r.chats[chatID] = struct{}{}
	return true, nil
}
