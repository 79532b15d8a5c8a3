// Package usage models the per-chat daily query quota and the registry of
// chats that have started the bot.
package usage

import (
	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// DailyCap is the number of grade queries a chat may make per calendar day.
const DailyCap = 2

// ChatID identifies a chat (a Telegram chat or a gateway caller).
type ChatID int64

// IsValid reports whether the id is usable as a key.
func (c ChatID) IsValid() bool {
	return c != 0
}

// Record is the stored usage of one chat.
type Record struct {
	ChatID   ChatID        `json:"chat_id"`
	Count    int           `json:"request_count"`
	LastDate timeutil.Date `json:"last_request_date"`
}

// Decision is the outcome of one quota check.
type Decision struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// Evaluate applies one query to the current record (nil when the chat has
// none) and returns the decision plus the record to store. A nil next record
// means nothing changes.
//
//	no record            -> count=1, today   allowed, 1 left
//	today, count < cap   -> count+1          allowed, cap-count-1 left
//	today, count >= cap  -> unchanged        denied, 0 left
//	other day            -> count=1, today   allowed, 1 left
func Evaluate(chatID ChatID, current *Record, today timeutil.Date) (Decision, *Record) {
	if current == nil || current.LastDate != today {
		next := &Record{ChatID: chatID, Count: 1, LastDate: today}
		return Decision{Allowed: true, Remaining: DailyCap - 1}, next
	}
	if current.Count >= DailyCap {
		return Decision{Allowed: false, Remaining: 0}, nil
	}
	next := &Record{ChatID: chatID, Count: current.Count + 1, LastDate: today}
	return Decision{Allowed: true, Remaining: DailyCap - next.Count}, next
}

// Remaining reports how many queries are left today without consuming one.
func Remaining(current *Record, today timeutil.Date) int {
	if current == nil || current.LastDate != today {
		return DailyCap
	}
	if current.Count >= DailyCap {
		return 0
	}
	return DailyCap - current.Count
}

// Errors of the usage domain.
var (
	ErrInvalidChatID = shared.NewDomainError("usage", "Validate", shared.ErrValidation, "chat id is required")
	ErrCapReached    = shared.NewDomainError("usage", "CheckAndRecord", shared.ErrRateLimited, "daily query limit reached")
)
