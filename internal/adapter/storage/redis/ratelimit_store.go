package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:"

// RateLimitResult is the state of one caller's window after a request.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // unix seconds
}

// RateLimitStore keeps fixed-window request counters per caller and route
// group so ledger endpoints can be throttled across API replicas.
type RateLimitStore struct {
	client goredis.UniversalClient
}

func NewRateLimitStore(client goredis.UniversalClient) *RateLimitStore {
	return &RateLimitStore{client: client}
}

// Allow records one request for key. The window counter is created with its
// TTL and incremented in one MULTI so a crash cannot leave a key without
// expiry.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	slot := time.Now().Unix() / secs
	counterKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, slot)

	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.SetNX(ctx, counterKey, 0, time.Duration(secs+1)*time.Second)
		incr = pipe.Incr(ctx, counterKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("counting request for %s: %w", key, err)
	}

	count := incr.Val()
	return &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   (slot + 1) * secs,
	}, nil
}
