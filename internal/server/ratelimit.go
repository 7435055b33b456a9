package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter manages request rate limiting and quotas.
type RateLimiter struct {
	mu sync.RWMutex

	// Request rate limiting
	requestsPerMinute int
	requestsPerHour   int

	// User quotas
	maxRequestsPerDay        int
	maxCorrespondencesPerDay int64

	// Storage for tracking usage
	userRequests map[string]*UserUsage

	now func() time.Time
}

// UserUsage tracks usage for a specific user/IP.
type UserUsage struct {
	// Request counts
	RequestsLastMinute int
	RequestsLastHour   int
	RequestsToday      int

	// Correspondences submitted today
	CorrespondencesToday int64

	// Timestamps
	minuteStart  time.Time
	hourStart    time.Time
	dayStartTime time.Time
}

// NewRateLimiter creates a new rate limiter with the given limits.
// A limit of zero disables that check.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxCorrespondencesPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute:        requestsPerMinute,
		requestsPerHour:          requestsPerHour,
		maxRequestsPerDay:        maxRequestsPerDay,
		maxCorrespondencesPerDay: maxCorrespondencesPerDay,
		userRequests:             make(map[string]*UserUsage),
		now:                      time.Now,
	}
}

// CheckRateLimit checks if a request from the given user/IP is allowed and
// counts it.
func (rl *RateLimiter) CheckRateLimit(userID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.getOrCreateUserUsage(userID, now)

	rl.resetCountersIfNeeded(usage, now)

	if err := rl.checkRateLimits(usage, now); err != nil {
		return err
	}
	if rl.maxRequestsPerDay > 0 && usage.RequestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.RequestsToday),
			Resets: nextDay(now),
		}
	}

	usage.RequestsLastMinute++
	usage.RequestsLastHour++
	usage.RequestsToday++
	return nil
}

// ConsumeCorrespondences charges n correspondences against the daily quota.
// Nothing is charged when the quota would be exceeded.
func (rl *RateLimiter) ConsumeCorrespondences(userID string, n int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	usage := rl.getOrCreateUserUsage(userID, now)
	rl.resetCountersIfNeeded(usage, now)

	if rl.maxCorrespondencesPerDay > 0 && usage.CorrespondencesToday+n > rl.maxCorrespondencesPerDay {
		return &QuotaExceededError{
			Type:   "correspondences",
			Limit:  rl.maxCorrespondencesPerDay,
			Used:   usage.CorrespondencesToday,
			Resets: nextDay(now),
		}
	}
	usage.CorrespondencesToday += n
	return nil
}

// resetCountersIfNeeded resets usage counters when time periods change.
func (rl *RateLimiter) resetCountersIfNeeded(usage *UserUsage, now time.Time) {
	if !sameDay(now, usage.dayStartTime) {
		usage.RequestsToday = 0
		usage.CorrespondencesToday = 0
		usage.dayStartTime = now
	}
	if now.Sub(usage.minuteStart) >= time.Minute {
		usage.RequestsLastMinute = 0
		usage.minuteStart = now
	}
	if now.Sub(usage.hourStart) >= time.Hour {
		usage.RequestsLastHour = 0
		usage.hourStart = now
	}
}

// checkRateLimits checks minute and hour rate limits.
func (rl *RateLimiter) checkRateLimits(usage *UserUsage, now time.Time) error {
	if rl.requestsPerMinute > 0 && usage.RequestsLastMinute >= rl.requestsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.requestsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.minuteStart),
		}
	}

	if rl.requestsPerHour > 0 && usage.RequestsLastHour >= rl.requestsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.requestsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.hourStart),
		}
	}

	return nil
}

// getOrCreateUserUsage gets or creates usage tracking for a user.
func (rl *RateLimiter) getOrCreateUserUsage(userID string, now time.Time) *UserUsage {
	usage, exists := rl.userRequests[userID]
	if !exists {
		usage = &UserUsage{
			minuteStart:  now,
			hourStart:    now,
			dayStartTime: now,
		}
		rl.userRequests[userID] = usage
	}
	return usage
}

// GetUsage returns a copy of the current usage statistics for a user.
func (rl *RateLimiter) GetUsage(userID string) UserUsage {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if usage, exists := rl.userRequests[userID]; exists {
		return *usage
	}
	return UserUsage{}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func nextDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RateLimitError represents a rate limit violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError represents a quota violation.
type QuotaExceededError struct {
	Type   string    // "requests" or "correspondences"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
