// Package token issues and parses the RS256 access/refresh JWT pair bound
// to a session.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/veriden/authcore/keys"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrNoSigningKey = errors.New("no signing key available")
)

// AccessClaims carry the identity payload of a short-lived access token.
type AccessClaims struct {
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sessionId"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only what refresh rotation needs; no email, roles, or
// audience.
type RefreshClaims struct {
	SessionID   string `json:"sessionId"`
	TokenFamily string `json:"tokenFamily"`
	jwt.RegisteredClaims
}

// Pair is one issued access/refresh token pair.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Issuer signs token pairs with the current signing key and verifies them
// against whichever key the kid header names.
type Issuer struct {
	keys       *keys.Store
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(keyStore *keys.Store, issuer, audience string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		keys:       keyStore,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue creates an access/refresh pair for the session. Both tokens carry
// the signing key's kid so verification survives rotation.
func (i *Issuer) Issue(userID, email string, roles []string, sessionID, tokenFamily string) (*Pair, error) {
	key := i.keys.Current()
	if key == nil {
		return nil, ErrNoSigningKey
	}

	now := i.now()
	accessExpiry := now.Add(i.accessTTL)
	refreshExpiry := now.Add(i.refreshTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodRS256, AccessClaims{
		Email:     email,
		Roles:     roles,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	})
	access.Header["kid"] = key.ID

	refresh := jwt.NewWithClaims(jwt.SigningMethodRS256, RefreshClaims{
		SessionID:   sessionID,
		TokenFamily: tokenFamily,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	refresh.Header["kid"] = key.ID

	accessSigned, err := access.SignedString(key.Private)
	if err != nil {
		return nil, err
	}
	refreshSigned, err := refresh.SignedString(key.Private)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      accessSigned,
		RefreshToken:     refreshSigned,
		AccessExpiresAt:  accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// ParseAccess verifies an access token and returns its claims.
func (i *Issuer) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	err := i.parse(raw, claims,
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(raw, claims, jwt.WithIssuer(i.issuer)); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrTokenInvalid)
		}
		public, err := i.keys.ByID(kid)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown kid", ErrTokenInvalid)
		}
		return public, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		if errors.Is(err, ErrTokenInvalid) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return nil
}
