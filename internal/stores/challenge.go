package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

// Challenge method discriminators as stored on the wire.
const (
	ChallengeMethodTOTP uint8 = 1
	ChallengeMethodSMS  uint8 = 2
)

var (
	ErrChallengeNotFound = errors.New("mfa challenge not found")
	ErrChallengeExpired  = errors.New("mfa challenge expired")
	ErrChallengeBackend  = errors.New("mfa challenge backend unavailable")
)

// Challenge is the stored record of one in-flight MFA verification.
// CodeHash is all zeroes for TOTP challenges; the TOTP code is derived from
// the user's secret, not stored here.
type Challenge struct {
	UserID     string
	Method     uint8
	CodeHash   [32]byte
	Attempts   uint16
	CreatedAt  int64
	ExpiresAt  int64
	LastSentAt int64
}

// ChallengeStore keeps MFA challenges in Redis under opaque tokens, with a
// per-user-per-method index key that enforces the single-live-challenge
// invariant.
type ChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string) *ChallengeStore {
	if prefix == "" {
		prefix = "mfc"
	}
	return &ChallengeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ChallengeStore) key(token string) string {
	return s.prefix + ":" + token
}

func (s *ChallengeStore) userKey(userID string, method uint8) string {
	return s.prefix + ":u:" + userID + ":" + methodLabel(method)
}

func methodLabel(method uint8) string {
	if method == ChallengeMethodSMS {
		return "sms"
	}
	return "totp"
}

// Create stores a new challenge under token, deleting any live challenge
// for the same user and method first.
func (s *ChallengeStore) Create(ctx context.Context, token string, record *Challenge, ttl time.Duration) error {
	encoded, err := encodeChallenge(record)
	if err != nil {
		return err
	}

	userKey := s.userKey(record.UserID, record.Method)
	prior, err := s.redis.Get(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prior != "" {
			pipe.Del(ctx, s.key(prior))
		}
		pipe.Set(ctx, s.key(token), encoded, ttl)
		pipe.Set(ctx, userKey, token, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	return nil
}

// Get returns the challenge stored under token. Expired records are removed
// and reported as expired; Redis TTL normally removes them first.
func (s *ChallengeStore) Get(ctx context.Context, token string) (*Challenge, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(token)).Result()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

// Delete removes the challenge and its user index entry. Returns whether the
// challenge key existed.
func (s *ChallengeStore) Delete(ctx context.Context, token string, record *Challenge) (bool, error) {
	keys := []string{s.key(token)}
	if record != nil {
		keys = append(keys, s.userKey(record.UserID, record.Method))
	}
	n, err := s.redis.Del(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter under an optimistic
// transaction and returns the post-increment count, so concurrent failures
// on one token never report a stale number. When the counter reaches
// maxAttempts the challenge is deleted and exceeded=true is returned; later
// lookups of the token see expiry, not an attempt-count oracle.
func (s *ChallengeStore) RecordFailure(ctx context.Context, token string, maxAttempts int) (attempts int, exceeded bool, err error) {
	const maxRetries = 4
	key := s.key(token)

	for i := 0; i < maxRetries; i++ {
		attempts, exceeded = 0, false
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			record.Attempts++
			attempts = int(record.Attempts)
			if attempts >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key, s.userKey(record.UserID, record.Method))
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrChallengeExpired
			}

			updated, err := encodeChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return 0, false, ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return 0, false, err
			}
			return 0, false, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return attempts, exceeded, nil
	}

	return 0, false, ErrChallengeNotFound
}

// ReplaceCode swaps the stored code hash on an SMS challenge and extends its
// expiry, failing with ErrChallengeNotFound when the challenge was deleted
// concurrently. This is the resend path's compare-and-set.
func (s *ChallengeStore) ReplaceCode(
	ctx context.Context,
	token string,
	codeHash [32]byte,
	sentAt time.Time,
	expiresAt time.Time,
) error {
	const maxRetries = 4
	key := s.key(token)

	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeChallenge(data)
			if err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				return ErrChallengeExpired
			}

			record.CodeHash = codeHash
			record.LastSentAt = sentAt.Unix()
			if expiresAt.Unix() > record.ExpiresAt {
				record.ExpiresAt = expiresAt.Unix()
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				return ErrChallengeExpired
			}

			updated, err := encodeChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				pipe.Set(ctx, s.userKey(record.UserID, record.Method), token, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrChallengeNotFound
			}
			if errors.Is(err, ErrChallengeExpired) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
		}
		return nil
	}

	return ErrChallengeNotFound
}

func encodeChallenge(record *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(record.Method)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.LastSentAt); err != nil {
		return nil, err
	}
	buf.Write(record.CodeHash[:])

	if len(record.UserID) > 65535 {
		return nil, errors.New("challenge user id length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &Challenge{}
	if record.Method, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.LastSentAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	return record, nil
}
