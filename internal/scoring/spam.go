package scoring

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// spamSetKey holds the maintained set of digits-only spam numbers.
const spamSetKey = "ripple:spam-numbers"

// RedisSpamChecker answers spam-number membership from a redis set maintained
// out-of-band by the abuse pipeline.
type RedisSpamChecker struct {
	client *redis.Client
}

func NewRedisSpamChecker(client *redis.Client) *RedisSpamChecker {
	return &RedisSpamChecker{client: client}
}

func (c *RedisSpamChecker) IsSpamNumber(ctx context.Context, digits string) (bool, error) {
	if digits == "" {
		return false, nil
	}
	return c.client.SIsMember(ctx, spamSetKey, digits).Result()
}
