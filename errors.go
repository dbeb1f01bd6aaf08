package authcore

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Domain sentinels. Typed errors below wrap these so callers can branch on
// errors.Is while still reading structured fields via errors.As.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountInactive    = errors.New("account inactive")

	ErrInvalidMFAToken = errors.New("invalid mfa token")
	ErrMFAExpired      = errors.New("mfa challenge expired")
	ErrInvalidMFACode  = errors.New("invalid mfa code")
	ErrCodeAlreadyUsed = errors.New("code already used")

	ErrSMSNotConfigured = errors.New("sms not configured")
	ErrPhoneNotVerified = errors.New("phone not verified")
	ErrRateLimited      = errors.New("rate limited")
	ErrCooldownActive   = errors.New("cooldown active")
	ErrSendFailed       = errors.New("code delivery failed")

	ErrSessionNotFound = errors.New("session not found")
	ErrDeviceNotFound  = errors.New("device not found")
)

// Infrastructure sentinels. These indicate faults, not domain outcomes, and
// map to 500.
var (
	ErrStoreUnavailable      = errors.New("backing store unavailable")
	ErrSigningKeyUnavailable = errors.New("signing key unavailable")
	ErrNotReady              = errors.New("authenticator not ready")
)

// AccountLockedError carries when the lock lifts.
type AccountLockedError struct {
	LockedUntil time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.LockedUntil.UTC().Format(time.RFC3339))
}

func (e *AccountLockedError) Unwrap() error { return ErrAccountLocked }

// AccountInactiveError carries the blocking status.
type AccountInactiveError struct {
	Status AccountStatus
}

func (e *AccountInactiveError) Error() string {
	return fmt.Sprintf("account inactive: %s", e.Status)
}

func (e *AccountInactiveError) Unwrap() error { return ErrAccountInactive }

// InvalidCredentialsError carries the attempts left before lockout. The
// message stays identical for unknown accounts and wrong passwords.
type InvalidCredentialsError struct {
	RemainingAttempts int
}

func (e *InvalidCredentialsError) Error() string { return ErrInvalidCredentials.Error() }

func (e *InvalidCredentialsError) Unwrap() error { return ErrInvalidCredentials }

// InvalidMFACodeError carries the attempts left on the challenge.
type InvalidMFACodeError struct {
	RemainingAttempts int
}

func (e *InvalidMFACodeError) Error() string { return ErrInvalidMFACode.Error() }

func (e *InvalidMFACodeError) Unwrap() error { return ErrInvalidMFACode }

// RateLimitedError carries when the window resets.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// CooldownActiveError carries the remaining cooldown.
type CooldownActiveError struct {
	Wait time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("resend cooldown active, wait %s", e.Wait.Round(time.Second))
}

func (e *CooldownActiveError) Unwrap() error { return ErrCooldownActive }

// StatusCode maps an error to the HTTP status an edge layer should return.
// nil maps to 200; MFA_REQUIRED is a success shape, not an error.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrInvalidMFAToken),
		errors.Is(err, ErrMFAExpired),
		errors.Is(err, ErrInvalidMFACode),
		errors.Is(err, ErrCodeAlreadyUsed),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrDeviceNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSMSNotConfigured), errors.Is(err, ErrPhoneNotVerified):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
