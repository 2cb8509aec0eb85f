package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether one more request under key may proceed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, window_ms)
	return 1
end
return 0`)

// SlidingWindowLimiter allows at most limit requests per key in any window,
// shared by every instance talking to the same Redis
type SlidingWindowLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter storing its windows under prefix
func NewSlidingWindowLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records the request when it fits in the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now().UnixMilli()
	result, err := slidingWindowScript.Run(ctx, l.client,
		[]string{"rate_limit:" + l.prefix + ":" + key},
		now,
		now-l.window.Milliseconds(),
		l.limit,
		l.window.Milliseconds(),
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// TokenBucketLimiter one bucket shared by every key
type TokenBucketLimiter struct {
	limiter *rate.Limiter
}

// NewTokenBucketLimiter creates a bucket refilled at r with capacity b
func NewTokenBucketLimiter(r rate.Limit, b int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		limiter: rate.NewLimiter(r, b),
	}
}

func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.limiter.Allow(), nil
}

// AllowN checks if n requests are allowed
func (l *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	return l.limiter.AllowN(time.Now(), n), nil
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter keeps one in-memory token bucket per key. Buckets idle for
// longer than ttl are dropped by Cleanup.
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

// NewKeyedLimiter creates per-key buckets refilled at r with capacity b
func NewKeyedLimiter(r rate.Limit, b int, ttl time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		buckets: make(map[string]*bucket),
		rate:    r,
		burst:   b,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (l *KeyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, 1), nil
}

// Cleanup drops idle buckets and returns how many were removed
func (l *KeyedLimiter) Cleanup() int {
	cutoff := l.now().Add(-l.ttl)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// StartCleanup runs Cleanup every interval until ctx ends
func (l *KeyedLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
