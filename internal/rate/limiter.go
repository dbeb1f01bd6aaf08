// Package rate implements the per-user SMS send limits: a fixed cooldown
// between sends and a fixed-window hourly cap.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrRateBackend = errors.New("rate limiter backend unavailable")

// SMSLimiter gates SMS code delivery per user. Both limits are consumed
// before the provider call so a failed delivery still burns the budget.
type SMSLimiter struct {
	redis    redis.UniversalClient
	prefix   string
	cooldown time.Duration
	window   time.Duration
	maxSends int
}

func NewSMSLimiter(redisClient redis.UniversalClient, prefix string, cooldown, window time.Duration, maxSends int) *SMSLimiter {
	if prefix == "" {
		prefix = "smsrl"
	}
	return &SMSLimiter{
		redis:    redisClient,
		prefix:   prefix,
		cooldown: cooldown,
		window:   window,
		maxSends: maxSends,
	}
}

func (l *SMSLimiter) cooldownKey(userID string) string {
	return l.prefix + ":cd:" + userID
}

func (l *SMSLimiter) bucketKey(userID string) string {
	return l.prefix + ":ct:" + userID
}

// Reserve consumes one send slot for the user. It returns (0, 0, nil) when
// the send may proceed. A positive wait is the remaining cooldown; a
// positive retryAfter is the time until the hourly window resets. The
// window counter is incremented before the caller dispatches the SMS.
func (l *SMSLimiter) Reserve(ctx context.Context, userID string) (wait, retryAfter time.Duration, err error) {
	ok, err := l.redis.SetNX(ctx, l.cooldownKey(userID), 1, l.cooldown).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
	}
	if !ok {
		remaining, err := l.redis.PTTL(ctx, l.cooldownKey(userID)).Result()
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
		}
		if remaining <= 0 {
			remaining = l.cooldown
		}
		return remaining, 0, nil
	}

	count, err := l.redis.Incr(ctx, l.bucketKey(userID)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, l.bucketKey(userID), l.window).Err(); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
		}
	}
	if count > int64(l.maxSends) {
		remaining, err := l.redis.PTTL(ctx, l.bucketKey(userID)).Result()
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrRateBackend, err)
		}
		if remaining <= 0 {
			remaining = l.window
		}
		return 0, remaining, nil
	}

	return 0, 0, nil
}
