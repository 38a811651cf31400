package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// SubmitGuard implements ports.SubmitGuard using Redis SET NX.
type SubmitGuard struct {
	client *goredis.Client
	prefix string
}

// NewSubmitGuard creates a new Redis-backed resubmission guard.
func NewSubmitGuard(client *goredis.Client) *SubmitGuard {
	return &SubmitGuard{
		client: client,
		prefix: "ar:",
	}
}

// Guard sets the marker for (operation, caller, request) if absent.
// Returns true if this is the first submission inside ttl.
func (g *SubmitGuard) Guard(ctx context.Context, operation, callerID, requestID string, ttl time.Duration) (bool, error) {
	key := g.prefix + domain.BuildSubmitKey(operation, callerID, requestID)
	result, err := g.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis submit guard: %w", err)
	}
	return result == "OK", nil
}
