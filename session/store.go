// Package session persists server-side sessions in Redis with a per-user
// index ordered by creation time, enforcing the concurrent-session cap by
// evicting the oldest session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrNotOwned     = errors.New("session not owned by user")
	ErrStoreBackend = errors.New("session store unavailable")
)

// Store keeps session blobs under s:<id> and a per-user ZSET index under
// s:u:<userID> scored by CreatedAt.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxPerUser int
}

func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration, maxPerUser int) *Store {
	if prefix == "" {
		prefix = "s"
	}
	return &Store{
		redis:      redisClient,
		prefix:     prefix,
		ttl:        ttl,
		maxPerUser: maxPerUser,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create persists a new session. When the user is at the session cap the
// oldest session is removed first and returned so the caller can report the
// eviction. The count-then-evict sequence is not transactional; a burst of
// concurrent logins can briefly exceed the cap, converging on later
// creates.
func (s *Store) Create(ctx context.Context, sess *Session) (evicted *Session, err error) {
	live, err := s.liveByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	if len(live) >= s.maxPerUser {
		oldest := live[0]
		if err := s.remove(ctx, oldest); err != nil {
			return nil, err
		}
		evicted = oldest
	}

	encoded, err := sess.encode()
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.ID), encoded, s.ttl)
		pipe.ZAdd(ctx, s.userKey(sess.UserID), redis.Z{
			Score:  float64(sess.CreatedAt.Unix()),
			Member: sess.ID,
		})
		pipe.Expire(ctx, s.userKey(sess.UserID), s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return evicted, nil
}

// Get returns the session by ID, treating expiry as not-found.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}

	sess, err := decodeSession(data)
	if err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.remove(ctx, sess)
		return nil, ErrNotFound
	}
	return sess, nil
}

// Delete removes the session after checking it belongs to userID. The
// removed session is returned for event emission.
func (s *Store) Delete(ctx context.Context, userID, id string) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotOwned
	}
	if err := s.remove(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListByUser returns the user's live sessions ordered oldest first, pruning
// index entries whose session blob has expired.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	return s.liveByUser(ctx, userID)
}

// DeleteAllByUser removes every session of the user and returns them.
func (s *Store) DeleteAllByUser(ctx context.Context, userID string) ([]*Session, error) {
	live, err := s.liveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sess := range live {
		if err := s.remove(ctx, sess); err != nil {
			return nil, err
		}
	}
	return live, nil
}

func (s *Store) liveByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}

	live := make([]*Session, 0, len(ids))
	var stale []string
	for _, id := range ids {
		sess, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		live = append(live, sess)
	}

	if len(stale) > 0 {
		members := make([]any, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		if err := s.redis.ZRem(ctx, s.userKey(userID), members...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
		}
	}
	return live, nil
}

func (s *Store) remove(ctx context.Context, sess *Session) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(sess.ID))
		pipe.ZRem(ctx, s.userKey(sess.UserID), sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return nil
}
