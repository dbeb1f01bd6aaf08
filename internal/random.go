package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

const opaqueTokenBytes = 24

// NewOpaqueToken returns a URL-safe random token suitable for MFA challenge
// tokens and session IDs. 24 random bytes, base64url, no padding.
func NewOpaqueToken() (string, error) {
	var raw [opaqueTokenBytes]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewPrefixedToken returns an opaque token with a fixed type prefix,
// e.g. "dvt_" for device-trust tokens.
func NewPrefixedToken(prefix string) (string, error) {
	token, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	return prefix + token, nil
}

// NewNumericCode generates a cryptographically random numeric one-time code.
func NewNumericCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid code digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	return b.String(), nil
}

// HashCode hashes a one-time code for storage. Plaintext codes are never
// written to the store.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// HashFingerprint one-way hashes a device fingerprint. The raw fingerprint
// is never persisted.
func HashFingerprint(fingerprint string) [32]byte {
	return sha256.Sum256([]byte(fingerprint))
}
