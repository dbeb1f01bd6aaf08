package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal/stores"
)

// VerifyMFA completes a pending challenge. A missing challenge, whether it
// expired, was consumed, or never existed, is reported as expired so the
// response does not reveal attempt-count state.
func (a *Authenticator) VerifyMFA(ctx context.Context, req VerifyMFARequest) (*SignInResult, error) {
	challenge, err := a.challenges.Get(ctx, req.ChallengeToken)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeNotFound), errors.Is(err, stores.ErrChallengeExpired):
			a.metricInc(MetricMFAExpired)
			return nil, ErrMFAExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	user, err := a.users.FindByID(ctx, challenge.UserID)
	if err != nil {
		if isNotFound(err) {
			a.metricInc(MetricMFAExpired)
			return nil, ErrMFAExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	method := methodFromChallenge(challenge.Method)
	var verifyErr error
	switch method {
	case MethodTOTP:
		verifyErr = a.verifyTOTP(ctx, user, challenge, req.Code)
	case MethodSMS:
		verifyErr = a.verifySMS(challenge, req.Code)
	}

	if verifyErr != nil {
		return nil, a.handleMFAFailure(ctx, user, challenge, method, req, verifyErr)
	}

	if _, err := a.challenges.Delete(ctx, req.ChallengeToken, challenge); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if method == MethodTOTP {
		a.metricInc(MetricTOTPSuccess)
	} else {
		a.metricInc(MetricSMSSuccess)
	}

	auth, err := a.finalize(ctx, user, finalizeParams{
		mfaUsed:        true,
		mfaMethod:      method,
		rememberDevice: req.RememberDevice,
		fingerprint:    req.DeviceFingerprint,
		loginSource:    req.LoginSource,
	})
	if err != nil {
		return nil, err
	}

	// Emitted after finalize so deviceRemembered reflects the trust that was
	// actually created, not the request's intent.
	a.emitEvent(ctx, event.TypeMFAVerificationSucceeded, user.ID, map[string]string{
		"method":           string(method),
		"deviceRemembered": strconv.FormatBool(auth.DeviceTrustToken != ""),
	})
	return &SignInResult{Authentication: auth}, nil
}

// handleMFAFailure records the failed attempt and translates the outcome.
// Reaching the attempt cap deletes the challenge, so this and every later
// call on the token surface as expired.
func (a *Authenticator) handleMFAFailure(
	ctx context.Context,
	user *User,
	challenge *stores.Challenge,
	method MFAMethod,
	req VerifyMFARequest,
	verifyErr error,
) error {
	if errors.Is(verifyErr, ErrCodeAlreadyUsed) {
		a.metricInc(MetricTOTPReplay)
		a.emitEvent(ctx, event.TypeMFAVerificationFailed, user.ID, map[string]string{
			"method":       string(method),
			"reason":       "CODE_ALREADY_USED",
			"attemptCount": strconv.Itoa(int(challenge.Attempts)),
		})
		return ErrCodeAlreadyUsed
	}

	if method == MethodTOTP {
		a.metricInc(MetricTOTPFailure)
	} else {
		a.metricInc(MetricSMSFailure)
	}

	attemptCount, exceeded, err := a.challenges.RecordFailure(ctx, req.ChallengeToken, a.config.MFA.MaxAttempts)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrChallengeNotFound), errors.Is(err, stores.ErrChallengeExpired):
			a.metricInc(MetricMFAExpired)
			return ErrMFAExpired
		default:
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	a.emitEvent(ctx, event.TypeMFAVerificationFailed, user.ID, map[string]string{
		"method":       string(method),
		"reason":       "INVALID_CODE",
		"attemptCount": strconv.Itoa(attemptCount),
	})

	if exceeded {
		a.metricInc(MetricMFAAttemptsExceeded)
		return ErrMFAExpired
	}
	return &InvalidMFACodeError{RemainingAttempts: a.config.MFA.MaxAttempts - attemptCount}
}
