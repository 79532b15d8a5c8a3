package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/pkg/timeutil"
)

const (
	day1 = timeutil.Date("2025-05-28")
	day2 = timeutil.Date("2025-05-29")
)

func TestEvaluate_DailySequence(t *testing.T) {
	var rec *Record

	d, next := Evaluate(7, rec, day1)
	assert.Equal(t, Decision{Allowed: true, Remaining: 1}, d)
	require.NotNil(t, next)
	assert.Equal(t, Record{ChatID: 7, Count: 1, LastDate: day1}, *next)
	rec = next

	d, next = Evaluate(7, rec, day1)
	assert.Equal(t, Decision{Allowed: true, Remaining: 0}, d)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.Count)
	rec = next

	d, next = Evaluate(7, rec, day1)
	assert.Equal(t, Decision{Allowed: false, Remaining: 0}, d)
	assert.Nil(t, next, "a denial must not write")

	d, next = Evaluate(7, rec, day2)
	assert.Equal(t, Decision{Allowed: true, Remaining: 1}, d)
	require.NotNil(t, next)
	assert.Equal(t, Record{ChatID: 7, Count: 1, LastDate: day2}, *next)
}

func TestEvaluate_OverCapRecordStaysDenied(t *testing.T) {
	d, next := Evaluate(7, &Record{ChatID: 7, Count: 5, LastDate: day1}, day1)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Nil(t, next)
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 2, Remaining(nil, day1))
	assert.Equal(t, 1, Remaining(&Record{Count: 1, LastDate: day1}, day1))
	assert.Equal(t, 0, Remaining(&Record{Count: 2, LastDate: day1}, day1))
	assert.Equal(t, 2, Remaining(&Record{Count: 2, LastDate: day1}, day2))
}
