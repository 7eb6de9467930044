// Package ratelimit throttles callers against a budget shared through Redis.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "mediaproc:ratelimit"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// RetryAfter is zero when Allowed.
	RetryAfter time.Duration
	// ResetAfter is how long until the bucket is full again.
	ResetAfter time.Duration
}

// gcraScript stores one theoretical arrival time (TAT) per subject, in
// milliseconds. A request of the given cost is admitted when the TAT it
// would produce lies no more than one window ahead of now.
var gcraScript = redis.NewScript(`
local emission = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local tat = tonumber(redis.call("GET", KEYS[1]))
if tat == nil or tat < now then
  tat = now
end

local next_tat = tat + emission * cost
local ahead = next_tat - now
if ahead > window then
  local remaining = math.floor((window - (tat - now)) / emission)
  return {0, math.max(remaining, 0), math.ceil(ahead - window), math.ceil(tat - now)}
end

redis.call("SET", KEYS[1], next_tat, "PX", math.ceil(ahead))
return {1, math.floor((window - ahead) / emission), 0, math.ceil(ahead)}
`)

// RedisTokenBucket admits up to capacity requests per window for each subject,
// refilling continuously. State lives in Redis, so every replica shares it.
type RedisTokenBucket struct {
	client     redis.UniversalClient
	capacity   int64
	windowMS   float64
	emissionMS float64
	keyPrefix  string
	now        func() time.Time
}

func NewRedisTokenBucket(client redis.UniversalClient, capacity int, window time.Duration, keyPrefix string) (*RedisTokenBucket, error) {
	switch {
	case client == nil:
		return nil, errors.New("redis client is required")
	case capacity <= 0:
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	case window <= 0:
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}

	keyPrefix = strings.TrimSuffix(strings.TrimSpace(keyPrefix), ":")
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	windowMS := math.Max(float64(window.Milliseconds()), 1)
	return &RedisTokenBucket{
		client:     client,
		capacity:   int64(capacity),
		windowMS:   windowMS,
		emissionMS: windowMS / float64(capacity),
		keyPrefix:  keyPrefix,
		now:        time.Now,
	}, nil
}

// Allow takes one token from subject's bucket.
func (l *RedisTokenBucket) Allow(ctx context.Context, subject string) (Decision, error) {
	return l.AllowN(ctx, subject, 1)
}

// AllowN takes cost tokens at once. A denied call consumes nothing.
func (l *RedisTokenBucket) AllowN(ctx context.Context, subject string, cost int) (Decision, error) {
	if cost < 1 || int64(cost) > l.capacity {
		return Decision{}, fmt.Errorf("cost must be 1-%d, got %d", l.capacity, cost)
	}

	values, err := gcraScript.Run(ctx, l.client,
		[]string{l.key(subject)},
		l.emissionMS,
		l.windowMS,
		l.now().UnixMilli(),
		cost,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	return l.decision(values)
}

func (l *RedisTokenBucket) Capacity() int64 {
	return l.capacity
}

func (l *RedisTokenBucket) key(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return l.keyPrefix + ":" + subject
}

// decision decodes the script reply {allowed, remaining, retry_ms, reset_ms}.
func (l *RedisTokenBucket) decision(values []int64) (Decision, error) {
	if len(values) != 4 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values, want 4", len(values))
	}
	return Decision{
		Allowed:    values[0] == 1,
		Limit:      l.capacity,
		Remaining:  min(values[1], l.capacity),
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
		ResetAfter: time.Duration(values[3]) * time.Millisecond,
	}, nil
}
