// Package password provides argon2id hashing and verification for stored
// credentials, including a fixed-cost dummy verification used to keep the
// unknown-account path timing-equivalent to the wrong-password path.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash        = errors.New("invalid password hash format")
	ErrUnsupportedVariant = errors.New("unsupported hash variant")
)

// Params are the argon2id cost parameters. Zero values are rejected by
// Validate; use DefaultParams for the recommended settings.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Params) Validate() error {
	if p.Memory < 8*1024 {
		return errors.New("password: memory below 8 MiB")
	}
	if p.Iterations < 1 {
		return errors.New("password: iterations below 1")
	}
	if p.Parallelism < 1 {
		return errors.New("password: parallelism below 1")
	}
	if p.SaltLength < 8 {
		return errors.New("password: salt below 8 bytes")
	}
	if p.KeyLength < 16 {
		return errors.New("password: key below 16 bytes")
	}
	return nil
}

// Hasher hashes and verifies passwords with a fixed parameter set.
type Hasher struct {
	params    Params
	dummyHash string
}

// NewHasher builds a Hasher and precomputes the dummy hash used by
// DummyVerify.
func NewHasher(params Params) (*Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h := &Hasher{params: params}

	dummy, err := h.Hash("decoy-credential-timing-equalizer")
	if err != nil {
		return nil, err
	}
	h.dummyHash = dummy
	return h, nil
}

// Hash derives an argon2id hash and encodes it in PHC string format.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash. The comparison
// is constant time over the derived keys.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey(
		[]byte(password),
		salt,
		params.Iterations,
		params.Memory,
		params.Parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// DummyVerify performs a full verification against a throwaway hash so the
// caller spends comparable work whether or not an account exists. It always
// reports a mismatch.
func (h *Hasher) DummyVerify(password string) {
	_, _ = h.Verify(password, h.dummyHash)
}

func decodeHash(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrUnsupportedVariant
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return Params{}, nil, nil, ErrUnsupportedVariant
	}

	var params Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d",
		&params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
