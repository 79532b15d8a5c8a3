package sqlite

import (
	"context"
	"fmt"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
)

// ChatRegistry implements usage.ChatRegistry.
type ChatRegistry struct {
	db *DB
}

// NewChatRegistry creates a registry on an open database.
func NewChatRegistry(db *DB) *ChatRegistry {
	return &ChatRegistry{db: db}
}

var _ usage.ChatRegistry = (*ChatRegistry)(nil)

// Register implements usage.ChatRegistry.
func (r *ChatRegistry) Register(ctx context.Context, chatID usage.ChatID) (bool, error) {
	res, err := r.db.sql.ExecContext(ctx, `INSERT OR IGNORE INTO chats (chat_id) VALUES (?)`, int64(chatID))
	if err != nil {
		return false, fmt.Errorf("sqlite: register chat %d: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: register chat %d: %w", chatID, err)
	}
	return n == 1, nil
}
