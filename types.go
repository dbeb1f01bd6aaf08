package authcore

import (
	"context"
	"time"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "PENDING_VERIFICATION"
	StatusActive              AccountStatus = "ACTIVE"
	StatusSuspended           AccountStatus = "SUSPENDED"
	StatusDeactivated         AccountStatus = "DEACTIVATED"
	StatusLocked              AccountStatus = "LOCKED"
)

// MFAMethod names a second-factor mechanism.
type MFAMethod string

const (
	MethodTOTP MFAMethod = "TOTP"
	MethodSMS  MFAMethod = "SMS"
)

// User is the account record as seen by the authentication core. Ownership
// of the row lives in an external store; the core reads it and mutates only
// the lockout fields through UserStore.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Roles          []string
	Status         AccountStatus
	FailedAttempts int
	LockedUntil    *time.Time

	TOTPSecret    string
	Phone         string
	PhoneVerified bool
}

// MFAEnabled reports whether the user has at least one second factor
// configured.
func (u *User) MFAEnabled() bool {
	return u.TOTPSecret != "" || (u.Phone != "" && u.PhoneVerified)
}

// MFAMethods lists the second factors the user can complete, TOTP first.
func (u *User) MFAMethods() []MFAMethod {
	var methods []MFAMethod
	if u.TOTPSecret != "" {
		methods = append(methods, MethodTOTP)
	}
	if u.Phone != "" && u.PhoneVerified {
		methods = append(methods, MethodSMS)
	}
	return methods
}

// UserStore is the external account authority. IncrementFailedAttempts must
// be atomic at the row level so concurrent failures are not lost.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// IncrementFailedAttempts adds one to the counter and returns the new
	// value.
	IncrementFailedAttempts(ctx context.Context, userID string) (int, error)
	ResetFailedAttempts(ctx context.Context, userID string) error

	LockAccount(ctx context.Context, userID string, until time.Time) error
	UnlockAccount(ctx context.Context, userID string) error
}

// CredentialOutcome tags the branch a credential validation took.
type CredentialOutcome int

const (
	CredentialSuccess CredentialOutcome = iota
	CredentialInvalid
	CredentialAccountLocked
	CredentialAccountInactive
)

// CredentialResult is the typed outcome of a credential validation. UserID
// is set on every branch where the account was identified, including
// failures, so audit events can carry the subject; it stays empty only for
// addresses with no account behind them.
type CredentialResult struct {
	Outcome           CredentialOutcome
	User              *User
	UserID            string
	RemainingAttempts int
	LockedUntil       time.Time
	Status            AccountStatus
}

// SignInRequest carries one sign-in attempt.
type SignInRequest struct {
	Email    string
	Password string

	// DeviceTrustToken, when present with DeviceFingerprint, may bypass the
	// MFA step.
	DeviceTrustToken  string
	DeviceFingerprint string

	// RememberDevice asks for a device trust on successful completion.
	RememberDevice bool

	// PreferredMethod selects the challenge method when the user has more
	// than one factor configured. Empty picks TOTP when available.
	PreferredMethod MFAMethod

	LoginSource string
}

// SignInResult is the terminal response of a SignIn call. Exactly one of
// the two shapes is populated: MFARequired with challenge data, or a
// completed Authentication.
type SignInResult struct {
	MFARequired      bool
	ChallengeToken   string
	ChallengeExpires time.Time
	Methods          []MFAMethod
	MaskedPhone      string

	Authentication *Authentication
}

// Authentication is a completed sign-in: the session, the token pair, and
// the optional new device trust token.
type Authentication struct {
	UserID           string
	SessionID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	DeviceTrustToken string
	MFAUsed          bool
	MFAMethod        MFAMethod
}

// VerifyMFARequest completes a pending challenge.
type VerifyMFARequest struct {
	ChallengeToken    string
	Code              string
	RememberDevice    bool
	DeviceFingerprint string
	LoginSource       string
}

// SessionInfo is the caller-facing view of a live session.
type SessionInfo struct {
	ID        string
	DeviceID  string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DeviceInfo is the caller-facing view of a remembered device.
type DeviceInfo struct {
	ID         string
	Name       string
	UserAgent  string
	IPAddress  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}
