package server

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perMinute, perHour, perDay int, corrPerDay int64) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(perMinute, perHour, perDay, corrPerDay)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_MinuteLimit(t *testing.T) {
	rl, clock := newTestLimiter(2, 0, 0, 0)

	require.NoError(t, rl.CheckRateLimit("a"))
	require.NoError(t, rl.CheckRateLimit("a"))

	err := rl.CheckRateLimit("a")
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, time.Minute, rle.RetryAfter)

	clock.advance(30 * time.Second)
	err = rl.CheckRateLimit("a")
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, 30*time.Second, rle.RetryAfter)

	clock.advance(31 * time.Second)
	assert.NoError(t, rl.CheckRateLimit("a"))
}

func TestRateLimiter_HourLimit(t *testing.T) {
	rl, clock := newTestLimiter(0, 3, 0, 0)
	for range 3 {
		require.NoError(t, rl.CheckRateLimit("a"))
		clock.advance(10 * time.Minute)
	}

	var rle *RateLimitError
	require.True(t, errors.As(rl.CheckRateLimit("a"), &rle))
	assert.Equal(t, "hour", rle.Type)

	clock.advance(31 * time.Minute)
	assert.NoError(t, rl.CheckRateLimit("a"))
}

func TestRateLimiter_DailyRequests(t *testing.T) {
	rl, clock := newTestLimiter(0, 0, 2, 0)
	require.NoError(t, rl.CheckRateLimit("a"))
	require.NoError(t, rl.CheckRateLimit("a"))

	var qe *QuotaExceededError
	require.True(t, errors.As(rl.CheckRateLimit("a"), &qe))
	assert.Equal(t, "requests", qe.Type)
	assert.Equal(t, int64(2), qe.Used)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), qe.Resets)

	clock.advance(12 * time.Hour)
	assert.NoError(t, rl.CheckRateLimit("a"))
}

func TestRateLimiter_Correspondences(t *testing.T) {
	rl, clock := newTestLimiter(0, 0, 0, 100)

	require.NoError(t, rl.ConsumeCorrespondences("a", 60))
	require.NoError(t, rl.ConsumeCorrespondences("a", 40))

	var qe *QuotaExceededError
	require.True(t, errors.As(rl.ConsumeCorrespondences("a", 1), &qe))
	assert.Equal(t, "correspondences", qe.Type)
	assert.Equal(t, int64(100), qe.Used)
	assert.Contains(t, qe.Error(), "quota exceeded for correspondences")

	// A rejected charge is not recorded.
	assert.Equal(t, int64(100), rl.GetUsage("a").CorrespondencesToday)
	require.NoError(t, rl.ConsumeCorrespondences("b", 100))

	clock.advance(24 * time.Hour)
	assert.NoError(t, rl.ConsumeCorrespondences("a", 100))
}

func TestRateLimiter_GetUsage(t *testing.T) {
	rl, _ := newTestLimiter(10, 10, 10, 0)
	assert.Equal(t, UserUsage{}, rl.GetUsage("nobody"))

	require.NoError(t, rl.CheckRateLimit("a"))
	require.NoError(t, rl.ConsumeCorrespondences("a", 7))
	u := rl.GetUsage("a")
	assert.Equal(t, 1, u.RequestsLastMinute)
	assert.Equal(t, 1, u.RequestsLastHour)
	assert.Equal(t, 1, u.RequestsToday)
	assert.Equal(t, int64(7), u.CorrespondencesToday)
}

func TestRateLimitError_Message(t *testing.T) {
	err := &RateLimitError{Type: "minute", Limit: 5, RetryAfter: 10 * time.Second}
	assert.Equal(t, "rate limit exceeded for minute (limit: 5, retry after: 10s)", err.Error())
}
