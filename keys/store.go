// Package keys manages the rotating RSA signing keys used for JWT issuance.
// The store is the only in-process shared mutable state in the module; all
// access goes through a read-write mutex.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrKeyNotFound = errors.New("signing key not found")

const rsaKeyBits = 2048

// Key is one RSA signing key identified by its kid.
type Key struct {
	ID        string
	Private   *rsa.PrivateKey
	CreatedAt time.Time
	RetiredAt time.Time // zero while the key is current
}

// Store holds the current signing key plus retired keys kept for token
// verification until their retirement window lapses.
type Store struct {
	mu         sync.RWMutex
	current    *Key
	retired    map[string]*Key
	retirement time.Duration
	now        func() time.Time
}

// NewStore generates an initial key pair. retirement is how long a rotated
// key remains usable for verification.
func NewStore(retirement time.Duration) (*Store, error) {
	s := &Store{
		retired:    make(map[string]*Key),
		retirement: retirement,
		now:        time.Now,
	}
	if err := s.rotateLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active signing key.
func (s *Store) Current() *Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ByID resolves a key by kid for verification. Retired keys resolve until
// their retirement window lapses.
func (s *Store) ByID(kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current != nil && s.current.ID == kid {
		return &s.current.Private.PublicKey, nil
	}
	key, ok := s.retired[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if s.now().After(key.RetiredAt.Add(s.retirement)) {
		return nil, ErrKeyNotFound
	}
	return &key.Private.PublicKey, nil
}

// Rotate generates a fresh current key and moves the previous one to the
// retired set. Tokens signed by the old key keep verifying until the
// retirement window lapses.
func (s *Store) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rotateLocked()
}

func (s *Store) rotateLocked() error {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return err
	}

	if s.current != nil {
		s.current.RetiredAt = s.now()
		s.retired[s.current.ID] = s.current
	}
	s.current = &Key{
		ID:        uuid.NewString(),
		Private:   private,
		CreatedAt: s.now(),
	}
	return nil
}

// PruneRetired drops retired keys whose retirement window has lapsed and
// returns how many were removed.
func (s *Store) PruneRetired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now()
	for kid, key := range s.retired {
		if cutoff.After(key.RetiredAt.Add(s.retirement)) {
			delete(s.retired, kid)
			removed++
		}
	}
	return removed
}
