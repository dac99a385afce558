package orchestrator

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisGuard is the cross-instance half of duplicate suppression. A
// SETNX key scoped to (query, user, question text) and expiring with the
// suppression window means only the first submission acquires it.
type RedisGuard struct {
	client *redis.Client
	window time.Duration
}

func NewRedisGuard(client *redis.Client, window time.Duration) *RedisGuard {
	return &RedisGuard{client: client, window: window}
}

// Acquire reports whether this submission is the first within the window.
// Redis being unreachable fails open: the in-memory scan still applies
// and an occasional duplicate pair is cheaper than refusing the request.
func (g *RedisGuard) Acquire(ctx context.Context, queryID, userID, text string) (bool, error) {
	sum := sha1.Sum([]byte(strings.TrimSpace(text)))
	key := fmt.Sprintf("followup:dedup:%s:%s:%x", queryID, userID, sum)

	acquired, err := g.client.SetNX(ctx, key, "1", g.window).Result()
	if err != nil {
		return true, err
	}
	return acquired, nil
}
