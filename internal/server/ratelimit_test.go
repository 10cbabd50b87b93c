package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_MinuteLimit(t *testing.T) {
	rl := NewRateLimiter(2, 0, 0, 0)

	require.NoError(t, rl.Allow("client", 0))
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	require.Error(t, err)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Greater(t, rle.RetryAfter.Seconds(), 0.0)
}

func TestRateLimiter_HourLimit(t *testing.T) {
	rl := NewRateLimiter(0, 3, 0, 0)

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Allow("client", 0))
	}

	err := rl.Allow("client", 0)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "hour", rle.Type)
}

func TestRateLimiter_DailyRequestQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 2, 0)

	require.NoError(t, rl.Allow("client", 0))
	require.NoError(t, rl.Allow("client", 0))

	err := rl.Allow("client", 0)
	var qee *QuotaExceededError
	require.ErrorAs(t, err, &qee)
	assert.Equal(t, "requests", qee.Type)
	assert.EqualValues(t, 2, qee.Limit)
	assert.EqualValues(t, 2, qee.Used)
	assert.False(t, qee.Resets.IsZero())
}

func TestRateLimiter_DailyDataQuota(t *testing.T) {
	rl := NewRateLimiter(0, 0, 0, 100)

	require.NoError(t, rl.Allow("client", 60))

	// The next request would push usage past the quota.
	err := rl.Allow("client", 60)
	var qee *QuotaExceededError
	require.ErrorAs(t, err, &qee)
	assert.Equal(t, "data", qee.Type)
	assert.EqualValues(t, 100, qee.Limit)
	assert.EqualValues(t, 60, qee.Used)

	// A smaller request still fits.
	assert.NoError(t, rl.Allow("client", 40))
}

func TestRateLimiter_MinuteWindowRollsUnderSteadyTraffic(t *testing.T) {
	rl := NewRateLimiter(2, 0, 0, 0)
	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	require.NoError(t, rl.Allow("client", 0))
	current = current.Add(30 * time.Second)
	require.NoError(t, rl.Allow("client", 0))

	// Still inside the window opened by the first request.
	current = current.Add(10 * time.Second)
	err := rl.Allow("client", 0)
	require.Error(t, err)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.LessOrEqual(t, rle.RetryAfter, 20*time.Second)

	// 61s after the window opened the counter resets, even though the gap
	// since the last request is well under a minute.
	current = current.Add(21 * time.Second)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_HourWindowRollsUnderSteadyTraffic(t *testing.T) {
	rl := NewRateLimiter(0, 2, 0, 0)
	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return current }

	require.NoError(t, rl.Allow("client", 0))
	current = current.Add(40 * time.Minute)
	require.NoError(t, rl.Allow("client", 0))

	current = current.Add(10 * time.Minute)
	require.Error(t, rl.Allow("client", 0))

	current = current.Add(11 * time.Minute)
	assert.NoError(t, rl.Allow("client", 0))
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, 0, 0, 0)

	require.NoError(t, rl.Allow("a", 0))
	require.Error(t, rl.Allow("a", 0))
	assert.NoError(t, rl.Allow("b", 0))
}

func TestRateLimiter_ErrorMessages(t *testing.T) {
	rle := &RateLimitError{Type: "minute", Limit: 5}
	assert.Contains(t, rle.Error(), "minute")
	assert.Contains(t, rle.Error(), "5")

	qee := &QuotaExceededError{Type: "data", Limit: 100, Used: 60}
	msg := qee.Error()
	assert.Contains(t, msg, "data")
	assert.Contains(t, msg, fmt.Sprint(100))
	assert.Contains(t, msg, fmt.Sprint(60))
}
