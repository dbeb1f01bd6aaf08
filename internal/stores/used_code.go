package stores

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsedCodeStore records accepted TOTP codes so a code observed in transit
// cannot be replayed within its validity window. Keys are
// (userID, codeHash, step) tuples; a code is burned for every step it could
// have matched.
type UsedCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewUsedCodeStore(redisClient redis.UniversalClient, prefix string) *UsedCodeStore {
	if prefix == "" {
		prefix = "otpused"
	}
	return &UsedCodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *UsedCodeStore) key(userID string, codeHash [32]byte, step uint64) string {
	return s.prefix + ":" + userID + ":" + hex.EncodeToString(codeHash[:8]) + ":" + strconv.FormatUint(step, 10)
}

// Seen reports whether the code was already accepted at any step in the
// window.
func (s *UsedCodeStore) Seen(ctx context.Context, userID string, codeHash [32]byte, steps []uint64) (bool, error) {
	keys := make([]string, 0, len(steps))
	for _, step := range steps {
		keys = append(keys, s.key(userID, codeHash, step))
	}
	n, err := s.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// Record burns the code for the given step. The TTL must cover the full
// acceptance window so the entry outlives every step that could match it.
func (s *UsedCodeStore) Record(ctx context.Context, userID string, codeHash [32]byte, step uint64, ttl time.Duration) error {
	err := s.redis.Set(ctx, s.key(userID, codeHash, step), 1, ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}
