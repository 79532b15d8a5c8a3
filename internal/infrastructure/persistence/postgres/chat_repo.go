package postgres

import (
	"context"
	"fmt"

	"github.com/gradesbot/gradesbot/internal/domain/usage"
)

// ChatRepository implements usage.ChatRegistry on the chats table.
type ChatRepository struct {
	conn *Connection
}

// NewChatRepository creates a new ChatRepository.
func NewChatRepository(conn *Connection) *ChatRepository {
	return &ChatRepository{conn: conn}
}

var _ usage.ChatRegistry = (*ChatRepository)(nil)

// Register implements usage.ChatRegistry.
func (r *ChatRepository) Register(ctx context.Context, chatID usage.ChatID) (bool, error) {
	tag, err := r.conn.Exec(ctx,
		`INSERT INTO chats (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`,
		int64(chatID),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: register chat %d: %w", chatID, err)
	}
	return tag.RowsAffected() == 1, nil
}
