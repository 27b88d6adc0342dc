package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Outcome is the recorded result of a client's last attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeNone    Outcome = "none"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

const keyPrefix = "rate_limit:"

// Gate limits successful registrations per client key within a time window.
// Only recorded successes count against the limit; failed attempts reset the
// counter so a client whose registration failed validation is not penalized.
type Gate struct {
	client *redis.Client
	window time.Duration
	limit  int64
	now    func() time.Time
}

// NewClient constructs and pings a redis client.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "ratelimit.NewClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return client, nil
}

// New returns a gate over an existing redis client.
func New(client *redis.Client, window time.Duration, limit int64) *Gate {
	return &Gate{
		client: client,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

func (g *Gate) key(clientKey string) string {
	return keyPrefix + clientKey
}

// Check decides whether an attempt from the client key may proceed. A key never
// seen before is seeded with a zero counter and allowed; a key whose last
// activity predates the window is treated as expired and allowed; a key whose
// last outcome was a failure is allowed regardless of count.
func (g *Gate) Check(ctx context.Context, clientKey string) error {
	const op = "ratelimit.Check"

	fields, err := g.client.HGetAll(ctx, g.key(clientKey)).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(fields) == 0 {
		return g.seed(ctx, clientKey, op)
	}

	if Outcome(fields["outcome"]) == OutcomeFailed {
		return nil
	}

	last, err := time.Parse(time.RFC3339Nano, fields["timestamp"])
	if err != nil {
		return fmt.Errorf("%s: parse timestamp: %w", op, err)
	}
	if g.now().Sub(last) > g.window {
		// Stale window: start the key over as if never seen.
		return g.seed(ctx, clientKey, op)
	}

	count, err := strconv.ParseInt(fields["count"], 10, 64)
	if err != nil {
		return fmt.Errorf("%s: parse count: %w", op, err)
	}
	if count >= g.limit {
		return fmt.Errorf("%s: %w", op, ErrRateLimitExceeded)
	}

	return nil
}

func (g *Gate) seed(ctx context.Context, clientKey, op string) error {
	err := g.client.HSet(ctx, g.key(clientKey), map[string]interface{}{
		"timestamp": g.now().Format(time.RFC3339Nano),
		"count":     0,
		"outcome":   string(OutcomeNone),
	}).Err()
	if err != nil {
		return fmt.Errorf("%s: seed: %w", op, err)
	}
	return nil
}

// Record stores the attempt outcome. Failures reset the counter; anything else
// increments it.
func (g *Gate) Record(ctx context.Context, clientKey string, outcome Outcome) error {
	const op = "ratelimit.Record"

	var count int64
	if outcome != OutcomeFailed {
		prev, err := g.client.HGet(ctx, g.key(clientKey), "count").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if prev != "" {
			count, err = strconv.ParseInt(prev, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: parse count: %w", op, err)
			}
		}
		count++
	}

	err := g.client.HSet(ctx, g.key(clientKey), map[string]interface{}{
		"timestamp": g.now().Format(time.RFC3339Nano),
		"count":     count,
		"outcome":   string(outcome),
	}).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
