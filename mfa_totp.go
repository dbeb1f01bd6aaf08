package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/veriden/authcore/internal"
	"github.com/veriden/authcore/internal/stores"
)

// verifyTOTP validates a time-based code with replay protection layered on
// top of the pure verifier: a code accepted at any step in the tolerance
// window is burned for the whole window and cannot be accepted twice.
func (a *Authenticator) verifyTOTP(ctx context.Context, user *User, challenge *stores.Challenge, code string) error {
	if user.TOTPSecret == "" {
		return ErrInvalidMFACode
	}

	now := time.Now()
	codeHash := internal.HashCode(code)
	window := a.totp.StepWindow(now)

	seen, err := a.usedCodes.Seen(ctx, user.ID, codeHash, window)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if seen {
		return ErrCodeAlreadyUsed
	}

	if !a.totp.Verify(user.TOTPSecret, code, now) {
		return ErrInvalidMFACode
	}

	currentStep := window[len(window)/2]
	if err := a.usedCodes.Record(ctx, user.ID, codeHash, currentStep, a.totp.WindowTTL(now)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
