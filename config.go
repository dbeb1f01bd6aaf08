package authcore

import (
	"errors"
	"strings"
	"time"
)

// Config groups every tunable of the authentication core. Construct it via
// DefaultConfig and override fields before Build; the Builder validates the
// result.
type Config struct {
	Lockout     LockoutConfig
	MFA         MFAConfig
	TOTP        TOTPConfig
	SMS         SMSConfig
	Session     SessionConfig
	DeviceTrust DeviceTrustConfig
	Token       TokenConfig
	Keys        KeysConfig
	Password    PasswordConfig
	Events      EventsConfig
	Metrics     MetricsConfig
}

// LockoutConfig controls the brute-force counter.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// MFAConfig controls challenge lifetime and the attempt cap shared by both
// methods.
type MFAConfig struct {
	ChallengeTTL time.Duration
	MaxAttempts  int
}

// TOTPConfig controls time-based code verification.
type TOTPConfig struct {
	Period uint
	Skew   uint
}

// SMSConfig controls code generation and the per-user send limits.
type SMSConfig struct {
	CodeDigits     int
	ResendCooldown time.Duration
	HourlyWindow   time.Duration
	MaxPerWindow   int
	SendTimeout    time.Duration
}

// SessionConfig controls session lifetime and the concurrency cap.
type SessionConfig struct {
	TTL         time.Duration
	MaxPerUser  int
	RedisPrefix string
}

// DeviceTrustConfig controls remembered-device lifetime and cap.
type DeviceTrustConfig struct {
	TTL         time.Duration
	MaxPerUser  int
	RedisPrefix string
}

// TokenConfig controls JWT issuance.
type TokenConfig struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// KeysConfig controls signing key rotation.
type KeysConfig struct {
	// Retirement is how long a rotated key keeps verifying tokens.
	Retirement time.Duration
}

// PasswordConfig carries the argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// EventsConfig controls the dispatcher queue.
type EventsConfig struct {
	Buffer int
	Stream string
}

// MetricsConfig toggles counter collection.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the documented defaults: 5 attempts / 15 minute
// lock, 5 minute challenges with 3 attempts, 7 day sessions capped at 5,
// 30 day trusts capped at 10, 15 minute access and 7 day refresh tokens.
func DefaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxFailedAttempts: 5,
			LockDuration:      15 * time.Minute,
		},
		MFA: MFAConfig{
			ChallengeTTL: 5 * time.Minute,
			MaxAttempts:  3,
		},
		TOTP: TOTPConfig{
			Period: 30,
			Skew:   1,
		},
		SMS: SMSConfig{
			CodeDigits:     6,
			ResendCooldown: 60 * time.Second,
			HourlyWindow:   time.Hour,
			MaxPerWindow:   3,
			SendTimeout:    10 * time.Second,
		},
		Session: SessionConfig{
			TTL:        7 * 24 * time.Hour,
			MaxPerUser: 5,
		},
		DeviceTrust: DeviceTrustConfig{
			TTL:        30 * 24 * time.Hour,
			MaxPerUser: 10,
		},
		Token: TokenConfig{
			Issuer:     "authcore",
			Audience:   "authcore-clients",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Keys: KeysConfig{
			Retirement: 48 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Iterations:  3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Events: EventsConfig{
			Buffer: 256,
			Stream: "auth:events",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// validateConfig collects every violation rather than stopping at the
// first.
func validateConfig(cfg Config) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(cfg.Lockout.MaxFailedAttempts >= 1, "Lockout.MaxFailedAttempts must be >= 1")
	check(cfg.Lockout.LockDuration > 0, "Lockout.LockDuration must be positive")
	check(cfg.MFA.ChallengeTTL > 0, "MFA.ChallengeTTL must be positive")
	check(cfg.MFA.MaxAttempts >= 1, "MFA.MaxAttempts must be >= 1")
	check(cfg.TOTP.Period > 0, "TOTP.Period must be positive")
	check(cfg.SMS.CodeDigits >= 4 && cfg.SMS.CodeDigits <= 10, "SMS.CodeDigits must be between 4 and 10")
	check(cfg.SMS.ResendCooldown > 0, "SMS.ResendCooldown must be positive")
	check(cfg.SMS.HourlyWindow > 0, "SMS.HourlyWindow must be positive")
	check(cfg.SMS.MaxPerWindow >= 1, "SMS.MaxPerWindow must be >= 1")
	check(cfg.SMS.SendTimeout > 0, "SMS.SendTimeout must be positive")
	check(cfg.Session.TTL > 0, "Session.TTL must be positive")
	check(cfg.Session.MaxPerUser >= 1, "Session.MaxPerUser must be >= 1")
	check(cfg.DeviceTrust.TTL > 0, "DeviceTrust.TTL must be positive")
	check(cfg.DeviceTrust.MaxPerUser >= 1, "DeviceTrust.MaxPerUser must be >= 1")
	check(cfg.Token.Issuer != "", "Token.Issuer must be set")
	check(cfg.Token.AccessTTL > 0, "Token.AccessTTL must be positive")
	check(cfg.Token.RefreshTTL > cfg.Token.AccessTTL, "Token.RefreshTTL must exceed Token.AccessTTL")
	check(cfg.Keys.Retirement > 0, "Keys.Retirement must be positive")
	check(cfg.Events.Buffer > 0, "Events.Buffer must be positive")

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}
