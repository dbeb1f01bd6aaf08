package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal"
	"github.com/veriden/authcore/internal/stores"
	"github.com/veriden/authcore/sms"
)

// prepareSMSChallenge reserves a send slot and stamps a fresh code hash on
// the challenge record. The limiter is consumed here, before any gateway
// call, so a failing provider cannot be used to bypass the send limits.
func (a *Authenticator) prepareSMSChallenge(ctx context.Context, user *User, record *stores.Challenge, now time.Time) (string, error) {
	if a.smsSender == nil {
		return "", ErrSMSNotConfigured
	}
	if user.Phone == "" {
		return "", ErrSMSNotConfigured
	}
	if !user.PhoneVerified {
		return "", ErrPhoneNotVerified
	}

	wait, retryAfter, err := a.smsLimiter.Reserve(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if wait > 0 {
		a.metricInc(MetricSMSCooldown)
		return "", &CooldownActiveError{Wait: wait}
	}
	if retryAfter > 0 {
		a.metricInc(MetricSMSRateLimited)
		return "", &RateLimitedError{RetryAfter: retryAfter}
	}

	code, err := internal.NewNumericCode(a.config.SMS.CodeDigits)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	record.CodeHash = internal.HashCode(code)
	record.LastSentAt = now.Unix()
	return code, nil
}

// dispatchSMS hands the code to the gateway under its own timeout. A
// delivery failure is reported to the caller but the already-consumed rate
// budget stands.
func (a *Authenticator) dispatchSMS(ctx context.Context, phone, code string) error {
	sendCtx, cancel := context.WithTimeout(ctx, a.config.SMS.SendTimeout)
	defer cancel()

	if err := a.smsSender.Send(sendCtx, phone, code); err != nil {
		a.metricInc(MetricSMSSendFailed)
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	a.metricInc(MetricSMSSent)
	return nil
}

func (a *Authenticator) verifySMS(challenge *stores.Challenge, code string) error {
	presented := internal.HashCode(code)
	if subtle.ConstantTimeCompare(challenge.CodeHash[:], presented[:]) != 1 {
		return ErrInvalidMFACode
	}
	return nil
}

// SendSMSCode switches a pending challenge to the SMS method. When the
// challenge is already SMS this behaves like ResendSMSCode; when it was
// issued for TOTP a new SMS challenge replaces it under a new token.
func (a *Authenticator) SendSMSCode(ctx context.Context, challengeToken string) (*SignInResult, error) {
	challenge, err := a.challenges.Get(ctx, challengeToken)
	if err != nil {
		return nil, translateChallengeLookup(err)
	}

	if challenge.Method == stores.ChallengeMethodSMS {
		if err := a.ResendSMSCode(ctx, challengeToken); err != nil {
			return nil, err
		}
		// Re-read after the resend: the stored expiry may have been extended.
		refreshed, err := a.challenges.Get(ctx, challengeToken)
		if err != nil {
			return nil, translateChallengeLookup(err)
		}
		user, err := a.users.FindByID(ctx, refreshed.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return &SignInResult{
			MFARequired:      true,
			ChallengeToken:   challengeToken,
			ChallengeExpires: time.Unix(refreshed.ExpiresAt, 0).UTC(),
			Methods:          user.MFAMethods(),
			MaskedPhone:      sms.MaskPhone(user.Phone),
		}, nil
	}

	user, err := a.users.FindByID(ctx, challenge.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidMFAToken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(a.config.MFA.ChallengeTTL)
	record := &stores.Challenge{
		UserID:    user.ID,
		Method:    stores.ChallengeMethodSMS,
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	code, err := a.prepareSMSChallenge(ctx, user, record, now)
	if err != nil {
		return nil, err
	}

	// Retire the TOTP challenge; the new token supersedes it.
	if _, err := a.challenges.Delete(ctx, challengeToken, challenge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := a.challenges.Create(ctx, token, record, a.config.MFA.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := a.dispatchSMS(ctx, user.Phone, code); err != nil {
		return nil, err
	}

	a.emitEvent(ctx, event.TypeMFAChallengeInitiated, user.ID, map[string]string{
		"method":    string(MethodSMS),
		"expiresAt": expiresAt.Format(time.RFC3339),
	})

	return &SignInResult{
		MFARequired:      true,
		ChallengeToken:   token,
		ChallengeExpires: expiresAt,
		Methods:          user.MFAMethods(),
		MaskedPhone:      sms.MaskPhone(user.Phone),
	}, nil
}

// ResendSMSCode generates a fresh code for a live SMS challenge after the
// cooldown has elapsed and within the hourly cap. The challenge update is a
// compare-and-set; a challenge deleted concurrently reports an invalid
// token.
func (a *Authenticator) ResendSMSCode(ctx context.Context, challengeToken string) error {
	challenge, err := a.challenges.Get(ctx, challengeToken)
	if err != nil {
		return translateChallengeLookup(err)
	}
	if challenge.Method != stores.ChallengeMethodSMS {
		return ErrInvalidMFAToken
	}

	user, err := a.users.FindByID(ctx, challenge.UserID)
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidMFAToken
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	fresh := &stores.Challenge{}
	code, err := a.prepareSMSChallenge(ctx, user, fresh, now)
	if err != nil {
		return err
	}

	expiresAt := now.Add(a.config.MFA.ChallengeTTL)
	err = a.challenges.ReplaceCode(ctx, challengeToken, fresh.CodeHash, now, expiresAt)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeNotFound):
			return ErrInvalidMFAToken
		case errors.Is(err, stores.ErrChallengeExpired):
			return ErrMFAExpired
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if err := a.dispatchSMS(ctx, user.Phone, code); err != nil {
		return err
	}

	a.emitEvent(ctx, event.TypeMFAChallengeInitiated, user.ID, map[string]string{
		"method":    string(MethodSMS),
		"expiresAt": expiresAt.Format(time.RFC3339),
		"resend":    "true",
	})
	return nil
}

func translateChallengeLookup(err error) error {
	switch {
	case errors.Is(err, stores.ErrChallengeNotFound):
		return ErrInvalidMFAToken
	case errors.Is(err, stores.ErrChallengeExpired):
		return ErrMFAExpired
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
