package authcore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veriden/authcore/devicetrust"
	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal"
	"github.com/veriden/authcore/internal/stores"
	"github.com/veriden/authcore/session"
	"github.com/veriden/authcore/sms"
)

// SignIn runs one sign-in attempt end to end:
// credentials → (trusted-device bypass | MFA challenge) → session + tokens.
// A result with MFARequired set is terminal for this request; the caller
// completes the flow with VerifyMFA.
func (a *Authenticator) SignIn(ctx context.Context, req SignInRequest) (*SignInResult, error) {
	cred, err := a.validateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	// The aggregate ID carries the identified user; it is empty only when no
	// account matched the address.
	switch cred.Outcome {
	case CredentialInvalid:
		a.emitEvent(ctx, event.TypeAuthenticationFailed, cred.UserID, map[string]string{
			"reason": "INVALID_CREDENTIALS",
		})
		return nil, &InvalidCredentialsError{RemainingAttempts: cred.RemainingAttempts}
	case CredentialAccountLocked:
		a.emitEvent(ctx, event.TypeAuthenticationFailed, cred.UserID, map[string]string{
			"reason": "ACCOUNT_LOCKED",
		})
		return nil, &AccountLockedError{LockedUntil: cred.LockedUntil}
	case CredentialAccountInactive:
		a.emitEvent(ctx, event.TypeAuthenticationFailed, cred.UserID, map[string]string{
			"reason": "ACCOUNT_INACTIVE",
		})
		return nil, &AccountInactiveError{Status: cred.Status}
	}

	user := cred.User

	if user.MFAEnabled() {
		if trust := a.tryTrustedDevice(ctx, user, req); trust != nil {
			a.metricInc(MetricMFATrustedBypass)
			auth, err := a.finalize(ctx, user, finalizeParams{
				deviceID:    trust.ID,
				loginSource: req.LoginSource,
			})
			if err != nil {
				return nil, err
			}
			return &SignInResult{Authentication: auth}, nil
		}
		return a.beginMFA(ctx, user, req)
	}

	auth, err := a.finalize(ctx, user, finalizeParams{
		rememberDevice: req.RememberDevice,
		fingerprint:    req.DeviceFingerprint,
		loginSource:    req.LoginSource,
	})
	if err != nil {
		return nil, err
	}
	return &SignInResult{Authentication: auth}, nil
}

func (a *Authenticator) tryTrustedDevice(ctx context.Context, user *User, req SignInRequest) *devicetrust.DeviceTrust {
	if req.DeviceTrustToken == "" || req.DeviceFingerprint == "" {
		return nil
	}
	trust, err := a.trusts.Verify(
		ctx,
		req.DeviceTrustToken,
		user.ID,
		req.DeviceFingerprint,
		userAgentFromContext(ctx),
		internal.HashFingerprint,
	)
	if err != nil {
		return nil
	}
	return trust
}

// beginMFA creates a challenge for the selected method and returns the
// MFA_REQUIRED terminal response.
func (a *Authenticator) beginMFA(ctx context.Context, user *User, req SignInRequest) (*SignInResult, error) {
	methods := user.MFAMethods()
	method := methods[0]
	if req.PreferredMethod != "" {
		for _, m := range methods {
			if m == req.PreferredMethod {
				method = m
				break
			}
		}
	}

	token, err := internal.NewOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(a.config.MFA.ChallengeTTL)
	record := &stores.Challenge{
		UserID:    user.ID,
		Method:    challengeMethod(method),
		CreatedAt: now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	}

	result := &SignInResult{
		MFARequired:      true,
		ChallengeToken:   token,
		ChallengeExpires: expiresAt,
		Methods:          methods,
	}

	var code string
	if method == MethodSMS {
		code, err = a.prepareSMSChallenge(ctx, user, record, now)
		if err != nil {
			return nil, err
		}
		result.MaskedPhone = sms.MaskPhone(user.Phone)
	}

	if err := a.challenges.Create(ctx, token, record, a.config.MFA.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if method == MethodSMS {
		if err := a.dispatchSMS(ctx, user.Phone, code); err != nil {
			return nil, err
		}
	}

	a.metricInc(MetricMFARequired)
	a.emitEvent(ctx, event.TypeMFAChallengeInitiated, user.ID, map[string]string{
		"method":    string(method),
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
	return result, nil
}

type finalizeParams struct {
	mfaUsed        bool
	mfaMethod      MFAMethod
	rememberDevice bool
	fingerprint    string
	deviceID       string
	loginSource    string
}

// finalize establishes the session, mints tokens, and optionally remembers
// the device. It is shared by the no-MFA path, the trusted-device bypass,
// and MFA completion.
func (a *Authenticator) finalize(ctx context.Context, user *User, p finalizeParams) (*Authentication, error) {
	now := time.Now().UTC()
	sessionID := uuid.NewString()
	tokenFamily := uuid.NewString()

	deviceID := p.deviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	sess := &session.Session{
		ID:          sessionID,
		UserID:      user.ID,
		DeviceID:    deviceID,
		IPAddress:   clientIPFromContext(ctx),
		UserAgent:   userAgentFromContext(ctx),
		TokenFamily: tokenFamily,
		CreatedAt:   now,
		ExpiresAt:   now.Add(a.config.Session.TTL),
	}

	evicted, err := a.sessions.Create(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if evicted != nil {
		a.metricInc(MetricSessionEvicted)
		a.emitEvent(ctx, event.TypeSessionInvalidated, user.ID, map[string]string{
			"sessionId": evicted.ID,
			"reason":    event.SessionReasonConcurrentLimit,
		})
	}

	a.metricInc(MetricSessionCreated)
	a.emitEvent(ctx, event.TypeSessionCreated, user.ID, map[string]string{
		"sessionId": sess.ID,
		"deviceId":  sess.DeviceID,
		"ipAddress": sess.IPAddress,
		"userAgent": sess.UserAgent,
		"expiresAt": sess.ExpiresAt.Format(time.RFC3339),
	})

	pair, err := a.tokens.Issue(user.ID, user.Email, user.Roles, sessionID, tokenFamily)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	a.metricInc(MetricTokenIssued)

	auth := &Authentication{
		UserID:           user.ID,
		SessionID:        sessionID,
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		MFAUsed:          p.mfaUsed,
		MFAMethod:        p.mfaMethod,
	}

	if p.rememberDevice && p.fingerprint != "" {
		trustToken, err := a.rememberDevice(ctx, user, p.fingerprint)
		if err != nil {
			return nil, err
		}
		auth.DeviceTrustToken = trustToken
	}

	a.emitEvent(ctx, event.TypeAuthenticationSucceeded, user.ID, nil)

	payload := map[string]string{
		"sessionId":   sessionID,
		"mfaUsed":     strconv.FormatBool(p.mfaUsed),
		"loginSource": p.loginSource,
	}
	if p.mfaMethod != "" {
		payload["mfaMethod"] = string(p.mfaMethod)
	}
	if p.fingerprint != "" {
		fp := internal.HashFingerprint(p.fingerprint)
		payload["deviceFingerprint"] = fmt.Sprintf("%x", fp[:8])
	}
	a.emitEvent(ctx, event.TypeUserLoggedIn, user.ID, payload)
	a.metricInc(MetricSignInSuccess)

	return auth, nil
}

func challengeMethod(method MFAMethod) uint8 {
	if method == MethodSMS {
		return stores.ChallengeMethodSMS
	}
	return stores.ChallengeMethodTOTP
}

func methodFromChallenge(m uint8) MFAMethod {
	if m == stores.ChallengeMethodSMS {
		return MethodSMS
	}
	return MethodTOTP
}
