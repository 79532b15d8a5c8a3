package usage

import (
	"context"
)

// UpdateFunc receives the stored record (nil when there is none) and returns
// the record to write, or nil to leave storage untouched.
type UpdateFunc func(current *Record) (next *Record, err error)

// Store persists usage records. Implementations live in
// infrastructure/persistence.
type Store interface {
	// Get returns the record of a chat, or nil when it has none.
	Get(ctx context.Context, chatID ChatID) (*Record, error)

	// CompareAndUpdate reads the record of chatID, calls fn and upserts the
	// record fn returns, as one atomic step per chat. Two concurrent calls for
	// the same chat never both observe the same current record.
	CompareAndUpdate(ctx context.Context, chatID ChatID, fn UpdateFunc) error
}

// ChatRegistry remembers chats that have started the bot.
type ChatRegistry interface {
	// Register marks a chat as started. It reports true only the first time.
	Register(ctx context.Context, chatID ChatID) (created bool, err error)
}
