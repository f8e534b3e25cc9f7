package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/s33g/completions-gateway/internal/config"
	"github.com/s33g/completions-gateway/internal/storage"
)

// KEYS: minute counter, hour counter. ARGV: minute limit, hour limit, minute TTL, hour TTL.
var requestScript = redis.NewScript(`
local minute = tonumber(redis.call('GET', KEYS[1]) or "0")
local hour = tonumber(redis.call('GET', KEYS[2]) or "0")
local minute_limit = tonumber(ARGV[1])
local hour_limit = tonumber(ARGV[2])

if minute_limit > 0 and minute >= minute_limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, ttl > 0 and ttl or 60}
end

if hour_limit > 0 and hour >= hour_limit then
    local ttl = redis.call('TTL', KEYS[2])
    return {-2, ttl > 0 and ttl or 3600}
end

if minute == 0 then
    redis.call('SET', KEYS[1], 1, 'EX', tonumber(ARGV[3]))
else
    redis.call('INCR', KEYS[1])
end

if hour == 0 then
    redis.call('SET', KEYS[2], 1, 'EX', tonumber(ARGV[4]))
else
    redis.call('INCR', KEYS[2])
end

return {1, 0}
`)

// KEYS: period counter. ARGV: limit, period seconds, tokens to add.
var tokenScript = redis.NewScript(`
local limit = tonumber(ARGV[1])

if limit == 0 then
    return {1, 0, 0, 0}
end

local used = tonumber(redis.call('GET', KEYS[1]) or "0")
local to_add = tonumber(ARGV[3])

if used + to_add > limit then
    local ttl = redis.call('TTL', KEYS[1])
    return {-1, used, limit - used, ttl > 0 and ttl or tonumber(ARGV[2])}
end

if used == 0 then
    redis.call('SET', KEYS[1], to_add, 'EX', tonumber(ARGV[2]))
else
    redis.call('INCRBY', KEYS[1], to_add)
end

used = used + to_add
return {1, used, limit - used, 0}
`)

// Limiter enforces per-client request and token budgets
type Limiter struct {
	client *storage.Client
}

// NewLimiter creates a limiter and preloads its scripts
func NewLimiter(ctx context.Context, client *storage.Client) (*Limiter, error) {
	if err := requestScript.Load(ctx, client.Redis()).Err(); err != nil {
		return nil, fmt.Errorf("failed to load rate limit script: %w", err)
	}
	if err := tokenScript.Load(ctx, client.Redis()).Err(); err != nil {
		return nil, fmt.Errorf("failed to load token limit script: %w", err)
	}

	return &Limiter{client: client}, nil
}

// RequestResult holds the result of a request limit check
type RequestResult struct {
	Allowed        bool
	SecondsToReset int
	LimitType      string // "minute" or "hour"
}

// CheckRequests counts one request for clientID and reports whether it is allowed
func (l *Limiter) CheckRequests(ctx context.Context, clientID string, limits config.RateLimit) (*RequestResult, error) {
	keys := []string{
		l.client.Keys().RequestsMinute(clientID),
		l.client.Keys().RequestsHour(clientID),
	}

	values, err := runScript(ctx, l.client, requestScript, keys, 2,
		limits.RequestsPerMinute,
		limits.RequestsPerHour,
		60,   // minute TTL
		3600, // hour TTL
	)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	switch values[0] {
	case 1:
		return &RequestResult{Allowed: true}, nil
	case -1:
		return &RequestResult{SecondsToReset: int(values[1]), LimitType: "minute"}, nil
	case -2:
		return &RequestResult{SecondsToReset: int(values[1]), LimitType: "hour"}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit status: %d", values[0])
	}
}

// TokenResult holds the result of a token budget charge
type TokenResult struct {
	Allowed         bool
	TokensUsed      int
	TokensRemaining int
	SecondsToReset  int
}

// ChargeTokens adds tokens to clientID's budget for the current period unless that would exceed it
func (l *Limiter) ChargeTokens(ctx context.Context, clientID string, limits config.RateLimit, tokens int) (*TokenResult, error) {
	if limits.TokensPerPeriod == 0 {
		return &TokenResult{Allowed: true}, nil
	}

	periodSeconds, periodStart := period(limits.PeriodHours)
	key := l.client.Keys().Tokens(clientID, periodStart)

	values, err := runScript(ctx, l.client, tokenScript, []string{key}, 4,
		limits.TokensPerPeriod,
		periodSeconds,
		tokens,
	)
	if err != nil {
		return nil, fmt.Errorf("token limit check failed: %w", err)
	}

	return &TokenResult{
		Allowed:         values[0] == 1,
		TokensUsed:      int(values[1]),
		TokensRemaining: int(values[2]),
		SecondsToReset:  int(values[3]),
	}, nil
}

// CurrentTokens returns clientID's usage in the current period without charging
func (l *Limiter) CurrentTokens(ctx context.Context, clientID string, periodHours int) (int, error) {
	_, periodStart := period(periodHours)
	key := l.client.Keys().Tokens(clientID, periodStart)

	val, err := l.client.Redis().Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}

	return val, nil
}

func period(hours int) (seconds, start int64) {
	seconds = int64(hours) * 3600
	start = (time.Now().Unix() / seconds) * seconds
	return seconds, start
}

// runScript executes script and returns its integer reply of length want
func runScript(ctx context.Context, client *storage.Client, script *redis.Script, keys []string, want int, args ...any) ([]int64, error) {
	result, err := script.Run(ctx, client.Redis(), keys, args...).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(result) != want {
		return nil, fmt.Errorf("unexpected script result length %d", len(result))
	}
	return result, nil
}
