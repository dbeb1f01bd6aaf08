package authcore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/veriden/authcore/event"
	"github.com/veriden/authcore/internal"
)

// validateCredentials runs the full credential check: lookup, constant-cost
// password comparison, lockout accounting, and status gating. The caller
// maps the branch to its terminal response.
func (a *Authenticator) validateCredentials(ctx context.Context, email, password string) (*CredentialResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return a.ghostValidate(ctx, email, password)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	if user.Status == StatusLocked {
		if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
			a.metricInc(MetricAccountLocked)
			return &CredentialResult{
				Outcome:     CredentialAccountLocked,
				UserID:      user.ID,
				LockedUntil: *user.LockedUntil,
			}, nil
		}
		// Lock window lapsed; clear it and fall through to a normal check.
		if err := a.users.UnlockAccount(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		user.Status = StatusActive
		user.LockedUntil = nil
		user.FailedAttempts = 0
	}

	match, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !match {
		count, err := a.users.IncrementFailedAttempts(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if count >= a.config.Lockout.MaxFailedAttempts {
			lockedUntil := now.Add(a.config.Lockout.LockDuration)
			if err := a.users.LockAccount(ctx, user.ID, lockedUntil); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			a.metricInc(MetricAccountLocked)
			a.emitEvent(ctx, event.TypeAccountLocked, user.ID, map[string]string{
				"failedAttempts": strconv.Itoa(count),
				"lockedUntil":    lockedUntil.UTC().Format(time.RFC3339),
			})
			return &CredentialResult{
				Outcome:     CredentialAccountLocked,
				UserID:      user.ID,
				LockedUntil: lockedUntil,
			}, nil
		}

		a.metricInc(MetricSignInFailure)
		return &CredentialResult{
			Outcome:           CredentialInvalid,
			UserID:            user.ID,
			RemainingAttempts: a.config.Lockout.MaxFailedAttempts - count,
		}, nil
	}

	if user.Status != StatusActive {
		a.metricInc(MetricAccountInactive)
		return &CredentialResult{
			Outcome: CredentialAccountInactive,
			UserID:  user.ID,
			Status:  user.Status,
		}, nil
	}

	if user.FailedAttempts > 0 {
		if err := a.users.ResetFailedAttempts(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		user.FailedAttempts = 0
	}

	return &CredentialResult{
		Outcome: CredentialSuccess,
		User:    user,
		UserID:  user.ID,
	}, nil
}

// ghostValidate mirrors the real account's failure accounting for addresses
// with no account behind them: the same fixed-cost hash work, the same
// remaining-attempts countdown, and the same locked response at the cap, so
// neither timing nor the structured result reveals whether the address
// exists.
func (a *Authenticator) ghostValidate(ctx context.Context, email, password string) (*CredentialResult, error) {
	a.hasher.DummyVerify(password)

	fp := internal.HashFingerprint(email)
	count, resetIn, err := a.ghostFailures.Record(ctx, hex.EncodeToString(fp[:16]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	a.metricInc(MetricSignInFailure)
	if count >= a.config.Lockout.MaxFailedAttempts {
		return &CredentialResult{
			Outcome:     CredentialAccountLocked,
			LockedUntil: time.Now().Add(resetIn),
		}, nil
	}
	return &CredentialResult{
		Outcome:           CredentialInvalid,
		RemainingAttempts: a.config.Lockout.MaxFailedAttempts - count,
	}, nil
}

// ErrUserNotFound is what UserStore implementations return for a missing
// account.
var ErrUserNotFound = errors.New("user not found")

func isNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
