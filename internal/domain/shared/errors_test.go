package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsKind(t *testing.T) {
	err := NewDomainError("grade", "GetReport", ErrNotFound, "no weekly row")

	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, "grade.GetReport: no weekly row", err.Error())
}

func TestDomainError_WrapKeepsCause(t *testing.T) {
	err := WrapError("notion", "Query", ErrUpstreamUnavailable, "request timed out", context.DeadlineExceeded)

	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewDomainError("usage", "Check", ErrRateLimited, "cap reached"))

	assert.Equal(t, ErrRateLimited, KindOf(wrapped))
	assert.Equal(t, ErrInternal, KindOf(errors.New("other")))
}

func TestMessage(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewDomainError("grade", "Parse", ErrValidation, "bad account"))
	assert.Equal(t, "bad account", Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "", Message(nil))
}
