package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FailureCounter tracks failed sign-in attempts against addresses that have
// no account behind them. Real accounts count failures on the user row;
// without a shadow counter the remaining-attempts field would reveal which
// addresses exist after a single probe.
type FailureCounter struct {
	redis  redis.UniversalClient
	prefix string
	window time.Duration
}

func NewFailureCounter(redisClient redis.UniversalClient, prefix string, window time.Duration) *FailureCounter {
	if prefix == "" {
		prefix = "ghfail"
	}
	return &FailureCounter{
		redis:  redisClient,
		prefix: prefix,
		window: window,
	}
}

func (c *FailureCounter) key(id string) string {
	return c.prefix + ":" + id
}

// Record counts one failure and returns the total within the fixed window
// plus the time until the window resets.
func (c *FailureCounter) Record(ctx context.Context, id string) (int, time.Duration, error) {
	key := c.key(id)

	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
	}
	if count == 1 {
		if err := c.redis.Expire(ctx, key, c.window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
		}
	}

	remaining, err := c.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
	}
	if remaining <= 0 {
		remaining = c.window
	}
	return int(count), remaining, nil
}
