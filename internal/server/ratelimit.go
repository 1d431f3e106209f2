package server

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// idle clients are forgotten after a day
const (
	usageTTL        = 24 * time.Hour
	cleanupInterval = time.Hour
)

// RateLimiter manages per-client request rates and daily quotas. Rates use
// token buckets that refill continuously over their window.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	requestsPerHour   int

	maxRequestsPerDay int
	maxDataPerDay     int64 // in bytes

	userRequests map[string]*UserUsage
	lastCleanup  time.Time
	now          func() time.Time
}

// bucket is a token bucket holding up to limit tokens.
type bucket struct {
	tokens float64
	last   time.Time
}

// take refills the bucket and removes one token. When empty it returns the
// time until the next token.
func (b *bucket) take(limit int, window time.Duration, now time.Time) (time.Duration, bool) {
	rate := float64(limit) / window.Seconds()
	if b.last.IsZero() {
		b.tokens = float64(limit)
	} else {
		b.tokens = math.Min(float64(limit), b.tokens+now.Sub(b.last).Seconds()*rate)
	}
	b.last = now
	if b.tokens < 1 {
		return time.Duration(math.Round((1 - b.tokens) / rate * float64(time.Second))), false
	}
	b.tokens--
	return 0, true
}

// UserUsage tracks usage for a specific user/IP.
type UserUsage struct {
	minute bucket
	hour   bucket

	requestsToday int
	dataToday     int64

	lastRequestTime time.Time
	dayStartTime    time.Time
}

// RequestsToday returns the accepted requests of the current day.
func (u *UserUsage) RequestsToday() int { return u.requestsToday }

// DataToday returns the accepted upload bytes of the current day.
func (u *UserUsage) DataToday() int64 { return u.dataToday }

// NewRateLimiter creates a new rate limiter with the given limits. Zero
// disables a limit.
func NewRateLimiter(requestsPerMinute, requestsPerHour, maxRequestsPerDay int, maxDataPerDay int64) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		maxRequestsPerDay: maxRequestsPerDay,
		maxDataPerDay:     maxDataPerDay,
		userRequests:      make(map[string]*UserUsage),
		now:               time.Now,
	}
}

// CheckRateLimit checks if a request from the given user/IP is allowed and
// accounts for it when it is.
func (rl *RateLimiter) CheckRateLimit(userID string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanup(now)

	usage, ok := rl.userRequests[userID]
	if !ok {
		usage = &UserUsage{dayStartTime: now}
		rl.userRequests[userID] = usage
	}
	if !sameDay(now, usage.dayStartTime) {
		usage.requestsToday = 0
		usage.dataToday = 0
		usage.dayStartTime = now
	}

	if err := rl.checkDailyQuotas(usage, dataSize, now); err != nil {
		return err
	}
	if err := rl.takeTokens(usage, now); err != nil {
		return err
	}

	usage.requestsToday++
	usage.dataToday += dataSize
	usage.lastRequestTime = now
	return nil
}

// takeTokens charges the minute and hour buckets. A request refused by the
// hour bucket gives its minute token back.
func (rl *RateLimiter) takeTokens(usage *UserUsage, now time.Time) error {
	tookMinute := false
	if rl.requestsPerMinute > 0 {
		wait, ok := usage.minute.take(rl.requestsPerMinute, time.Minute, now)
		if !ok {
			return &RateLimitError{Type: "minute", Limit: rl.requestsPerMinute, RetryAfter: wait}
		}
		tookMinute = true
	}
	if rl.requestsPerHour > 0 {
		wait, ok := usage.hour.take(rl.requestsPerHour, time.Hour, now)
		if !ok {
			if tookMinute {
				usage.minute.tokens++
			}
			return &RateLimitError{Type: "hour", Limit: rl.requestsPerHour, RetryAfter: wait}
		}
	}
	return nil
}

// checkDailyQuotas checks daily request and data quotas.
func (rl *RateLimiter) checkDailyQuotas(usage *UserUsage, dataSize int64, now time.Time) error {
	resets := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	if rl.maxRequestsPerDay > 0 && usage.requestsToday >= rl.maxRequestsPerDay {
		return &QuotaExceededError{
			Type:   "requests",
			Limit:  int64(rl.maxRequestsPerDay),
			Used:   int64(usage.requestsToday),
			Resets: resets,
		}
	}

	if rl.maxDataPerDay > 0 && usage.dataToday+dataSize > rl.maxDataPerDay {
		return &QuotaExceededError{
			Type:   "data",
			Limit:  rl.maxDataPerDay,
			Used:   usage.dataToday,
			Resets: resets,
		}
	}

	return nil
}

// cleanup drops clients that have been idle for usageTTL.
func (rl *RateLimiter) cleanup(now time.Time) {
	if now.Sub(rl.lastCleanup) < cleanupInterval {
		return
	}
	rl.lastCleanup = now
	for id, usage := range rl.userRequests {
		if now.Sub(usage.lastRequestTime) > usageTTL {
			delete(rl.userRequests, id)
		}
	}
}

// GetUsage returns a copy of the usage of a user. Unknown users get an
// empty record.
func (rl *RateLimiter) GetUsage(userID string) *UserUsage {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if usage, ok := rl.userRequests[userID]; ok {
		c := *usage
		return &c
	}
	return &UserUsage{}
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.userRequests)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
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
	Type   string    // "requests" or "data"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
