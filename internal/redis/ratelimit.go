package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Route groups the console limits separately. Sign-in and OAuth starts are
// the tightest, reads the loosest.
const (
	GroupRead  = "read"
	GroupWrite = "write"
	GroupAuth  = "auth"
)

// RateLimitPolicy is the budget of one route group.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Group     string
	Limit     int
	Remaining int
	// ResetAt is when the oldest request in the window leaves it, freeing
	// one slot.
	ResetAt time.Time
}

// slidingWindow trims the window, counts it and records the request only
// when it fits, in one round trip so concurrent requests cannot overshoot.
// Returns {allowed, count, oldest score in ms}.
var slidingWindow = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window + 1000)
	count = count + 1
	allowed = 1
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then
	first = tonumber(oldest[2])
end
return {allowed, count, first}
`)

// RateLimiter is a sliding window limiter keyed by route group and subject,
// the operator's email once signed in and the client address before.
type RateLimiter struct {
	client   *Client
	logger   *zap.Logger
	policies map[string]RateLimitPolicy
	fallback RateLimitPolicy
	clock    clockwork.Clock
}

// NewRateLimiter uses fallback for any group without its own policy.
func NewRateLimiter(client *Client, logger *zap.Logger, fallback RateLimitPolicy, policies map[string]RateLimitPolicy) *RateLimiter {
	return &RateLimiter{
		client:   client,
		logger:   logger,
		policies: policies,
		fallback: fallback,
		clock:    clockwork.NewRealClock(),
	}
}

// WithClock swaps the clock the window is measured on.
func (r *RateLimiter) WithClock(c clockwork.Clock) *RateLimiter {
	r.clock = c
	return r
}

// Policy returns the budget applied to group.
func (r *RateLimiter) Policy(group string) RateLimitPolicy {
	if p, ok := r.policies[group]; ok {
		return p
	}
	return r.fallback
}

// Allow counts one request by subject against group's budget.
func (r *RateLimiter) Allow(ctx context.Context, group, subject string) (*RateLimitResult, error) {
	policy := r.Policy(group)
	now := r.clock.Now()
	key := r.client.key("ratelimit:" + group + ":" + subject)

	res, err := slidingWindow.Run(ctx, r.client.rdb, []string{key},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Limit,
		fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	result := &RateLimitResult{
		Allowed:   res[0] == 1,
		Group:     group,
		Limit:     policy.Limit,
		Remaining: max(0, policy.Limit-int(res[1])),
		ResetAt:   time.UnixMilli(res[2]).Add(policy.Window),
	}

	if !result.Allowed {
		r.logger.Debug("rate limit exceeded",
			zap.String("group", group),
			zap.String("subject", subject),
			zap.Int("limit", policy.Limit),
		)
	}
	return result, nil
}
