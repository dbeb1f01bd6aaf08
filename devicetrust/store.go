// Package devicetrust persists remembered devices that may bypass MFA.
// Verification fails closed: every failure mode looks identical to the
// caller so a probe cannot learn whether a token exists, whose it is, or
// which attribute mismatched.
package devicetrust

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrNotTrusted   = errors.New("device not trusted")
	ErrStoreBackend = errors.New("device trust store unavailable")
)

// Revocation reasons carried on DeviceRevoked events.
const (
	ReasonUserRevoked     = "USER_REVOKED"
	ReasonUserRevokedAll  = "USER_REVOKED_ALL"
	ReasonLimitExceeded   = "LIMIT_EXCEEDED"
	ReasonPasswordChanged = "PASSWORD_CHANGED"
)

const recordVersion1 = 1

// DeviceTrust is one remembered device. FingerprintHash is a one-way hash;
// the raw fingerprint never reaches the store.
type DeviceTrust struct {
	ID              string
	UserID          string
	FingerprintHash [32]byte
	UserAgent       string
	IPAddress       string
	CreatedAt       time.Time
	LastUsedAt      time.Time
	ExpiresAt       time.Time
}

// Store keeps trust blobs under dt:<id> and a per-user ZSET index under
// dt:u:<userID> scored by CreatedAt.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxPerUser int
}

func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration, maxPerUser int) *Store {
	if prefix == "" {
		prefix = "dt"
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

// Create persists a new trust. At the per-user cap the oldest trust is
// evicted first and returned for event emission. Count-then-evict is not
// transactional; see the session store for the same trade-off.
func (s *Store) Create(ctx context.Context, trust *DeviceTrust) (evicted *DeviceTrust, err error) {
	live, err := s.liveByUser(ctx, trust.UserID)
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

	encoded, err := encodeTrust(trust)
	if err != nil {
		return nil, err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(trust.ID), encoded, s.ttl)
		pipe.ZAdd(ctx, s.userKey(trust.UserID), redis.Z{
			Score:  float64(trust.CreatedAt.Unix()),
			Member: trust.ID,
		})
		pipe.Expire(ctx, s.userKey(trust.UserID), s.ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return evicted, nil
}

// Verify checks a presented trust token against the expected user,
// fingerprint, and user agent, and touches LastUsedAt on success. All
// mismatches, missing tokens, and expired trusts return ErrNotTrusted with
// no further detail.
func (s *Store) Verify(ctx context.Context, token, userID, fingerprint, userAgent string, hashFingerprint func(string) [32]byte) (*DeviceTrust, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotTrusted
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}

	trust, err := decodeTrust(data)
	if err != nil {
		return nil, ErrNotTrusted
	}

	presented := hashFingerprint(fingerprint)
	valid := trust.UserID == userID
	valid = subtle.ConstantTimeCompare(trust.FingerprintHash[:], presented[:]) == 1 && valid
	valid = trust.UserAgent == userAgent && valid
	valid = time.Now().Before(trust.ExpiresAt) && valid
	if !valid {
		return nil, ErrNotTrusted
	}

	trust.LastUsedAt = time.Now().UTC()
	encoded, err := encodeTrust(trust)
	if err != nil {
		return nil, err
	}
	ttl := time.Until(trust.ExpiresAt)
	if err := s.redis.Set(ctx, s.key(token), encoded, ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return trust, nil
}

// Get returns a trust by ID for the given user.
func (s *Store) Get(ctx context.Context, userID, id string) (*DeviceTrust, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotTrusted
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	trust, err := decodeTrust(data)
	if err != nil {
		return nil, ErrNotTrusted
	}
	if trust.UserID != userID || time.Now().After(trust.ExpiresAt) {
		return nil, ErrNotTrusted
	}
	return trust, nil
}

// Revoke removes one trust owned by userID and returns it.
func (s *Store) Revoke(ctx context.Context, userID, id string) (*DeviceTrust, error) {
	trust, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.remove(ctx, trust); err != nil {
		return nil, err
	}
	return trust, nil
}

// RevokeAll removes every trust of the user and returns them.
func (s *Store) RevokeAll(ctx context.Context, userID string) ([]*DeviceTrust, error) {
	live, err := s.liveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, trust := range live {
		if err := s.remove(ctx, trust); err != nil {
			return nil, err
		}
	}
	return live, nil
}

// ListByUser returns the user's live trusts ordered oldest first, pruning
// stale index entries.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*DeviceTrust, error) {
	return s.liveByUser(ctx, userID)
}

func (s *Store) liveByUser(ctx context.Context, userID string) ([]*DeviceTrust, error) {
	ids, err := s.redis.ZRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}

	live := make([]*DeviceTrust, 0, len(ids))
	var stale []string
	for _, id := range ids {
		trust, err := s.Get(ctx, userID, id)
		if errors.Is(err, ErrNotTrusted) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		live = append(live, trust)
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

func (s *Store) remove(ctx context.Context, trust *DeviceTrust) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(trust.ID))
		pipe.ZRem(ctx, s.userKey(trust.UserID), trust.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return nil
}

func encodeTrust(trust *DeviceTrust) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	for _, ts := range []time.Time{trust.CreatedAt, trust.LastUsedAt, trust.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts.Unix()); err != nil {
			return nil, err
		}
	}
	buf.Write(trust.FingerprintHash[:])

	for _, field := range []string{trust.ID, trust.UserID, trust.UserAgent, trust.IPAddress} {
		if len(field) > 65535 {
			return nil, errors.New("device trust field length exceeded")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeTrust(data []byte) (*DeviceTrust, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersion1 {
		return nil, errors.New("invalid device trust record version")
	}

	trust := &DeviceTrust{}
	var stamps [3]int64
	for i := range stamps {
		if err := binary.Read(reader, binary.BigEndian, &stamps[i]); err != nil {
			return nil, err
		}
	}
	trust.CreatedAt = time.Unix(stamps[0], 0).UTC()
	trust.LastUsedAt = time.Unix(stamps[1], 0).UTC()
	trust.ExpiresAt = time.Unix(stamps[2], 0).UTC()

	if _, err := io.ReadFull(reader, trust.FingerprintHash[:]); err != nil {
		return nil, err
	}

	for _, field := range []*string{&trust.ID, &trust.UserID, &trust.UserAgent, &trust.IPAddress} {
		var length uint16
		if err := binary.Read(reader, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}
	return trust, nil
}
