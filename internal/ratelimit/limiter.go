package ratelimit

import "context"

// RateLimiter controls upload throughput per account.
type RateLimiter interface {
	Allow(ctx context.Context, accountID string) (bool, error)
	Wait(ctx context.Context, accountID string) error
}
