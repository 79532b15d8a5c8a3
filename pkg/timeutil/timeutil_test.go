package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesCourseZone(t *testing.T) {
	require.NoError(t, SetZone("America/Mexico_City"))

	// 03:00 UTC is still the previous evening in Mexico City.
	utc := time.Date(2025, 5, 29, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, Date("2025-05-28"), DateOf(utc))

	later := time.Date(2025, 5, 29, 7, 0, 0, 0, time.UTC)
	assert.Equal(t, Date("2025-05-29"), DateOf(later))
}

func TestDate_AddDays(t *testing.T) {
	assert.Equal(t, Date("2025-03-01"), Date("2025-02-28").AddDays(1))
	assert.Equal(t, Date("2024-12-31"), Date("2025-01-01").AddDays(-1))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-03")
	require.NoError(t, err)
	assert.Equal(t, Date("2025-06-03"), d)

	_, err = ParseDate("03-06-2025")
	assert.Error(t, err)
}

func TestDate_TimeRoundTrip(t *testing.T) {
	d := Date("2025-06-03")
	assert.Equal(t, d, DateFromTime(d.Time()))
}

func TestToday_FixedClock(t *testing.T) {
	require.NoError(t, SetZone("America/Mexico_City"))
	clock := FixedClock(time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, Date("2025-01-10"), Today(clock))
}

func TestUntilMidnight(t *testing.T) {
	require.NoError(t, SetZone("UTC"))
	defer func() { _ = SetZone(DefaultZoneName) }()

	now := time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, UntilMidnight(now))
}
