package ratelimit

import "context"

// Limiter answers whether one more request from the given key fits the limit
// over the sliding window. Returns (allowed, remaining, error).
type Limiter interface {
	AllowRequest(ctx context.Context, key string, limit int, windowSeconds int) (bool, int, error)
}
