package query

import (
	"context"

	"github.com/gradesbot/gradesbot/internal/domain/shared"
	"github.com/gradesbot/gradesbot/internal/domain/usage"
	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

// GetUsageQuery asks for the quota state of a chat without consuming it.
type GetUsageQuery struct {
	ChatID usage.ChatID
}

// UsageStatus is the stored usage of a chat plus what is left today.
type UsageStatus struct {
	ChatID    usage.ChatID  `json:"chat_id"`
	Count     int           `json:"request_count"`
	LastDate  timeutil.Date `json:"last_request_date,omitempty"`
	Remaining int           `json:"remaining"`
	DailyCap  int           `json:"daily_cap"`
}

// GetUsageHandler handles usage lookups.
type GetUsageHandler struct {
	store usage.Store
	clock timeutil.Clock
}

// NewGetUsageHandler creates a new handler. A nil clock uses the system clock.
func NewGetUsageHandler(store usage.Store, clock timeutil.Clock) *GetUsageHandler {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &GetUsageHandler{store: store, clock: clock}
}

// Handle returns the usage status of a chat.
func (h *GetUsageHandler) Handle(ctx context.Context, q GetUsageQuery) (*UsageStatus, error) {
	if !q.ChatID.IsValid() {
		return nil, usage.ErrInvalidChatID
	}

	rec, err := h.store.Get(ctx, q.ChatID)
	if err != nil {
		return nil, shared.WrapError("query", "GetUsage", shared.ErrUpstreamUnavailable, "usage store unavailable", err)
	}

	status := &UsageStatus{
		ChatID:    q.ChatID,
		Remaining: usage.Remaining(rec, timeutil.Today(h.clock)),
		DailyCap:  usage.DailyCap,
	}
	if rec != nil {
		status.Count = rec.Count
		status.LastDate = rec.LastDate
	}
	return status, nil
}
