// Package totp wraps RFC 6238 verification with the clock tolerance used by
// the MFA flow.
package totp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Verifier checks 6-digit time-based codes with one step of skew in either
// direction.
type Verifier struct {
	period uint
	skew   uint
	digits otp.Digits
}

func NewVerifier(period, skew uint) *Verifier {
	if period == 0 {
		period = 30
	}
	return &Verifier{
		period: period,
		skew:   skew,
		digits: otp.DigitsSix,
	}
}

// Verify reports whether code is valid for secret at time at. A malformed
// secret counts as a mismatch, not an error; the caller treats both the
// same.
func (v *Verifier) Verify(secret, code string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    v.period,
		Skew:      v.skew,
		Digits:    v.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}

// StepWindow returns the counter values a code could have matched at time
// at, given the configured skew. Used to burn accepted codes across the
// whole acceptance window.
func (v *Verifier) StepWindow(at time.Time) []uint64 {
	current := uint64(at.UTC().Unix()) / uint64(v.period)
	steps := make([]uint64, 0, 2*v.skew+1)
	for offset := -int64(v.skew); offset <= int64(v.skew); offset++ {
		step := int64(current) + offset
		if step < 0 {
			continue
		}
		steps = append(steps, uint64(step))
	}
	return steps
}

// WindowTTL is how long an accepted code must stay burned: the remainder of
// the current step plus skew extra steps.
func (v *Verifier) WindowTTL(at time.Time) time.Duration {
	period := time.Duration(v.period) * time.Second
	intoStep := time.Duration(uint64(at.UTC().Unix())%uint64(v.period)) * time.Second
	return period - intoStep + time.Duration(v.skew)*period
}
