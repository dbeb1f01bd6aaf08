package totp

import (
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const testSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

func codeAt(t *testing.T, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(testSecret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}

func TestVerifyWithinTolerance(t *testing.T) {
	v := NewVerifier(30, 1)
	now := time.Unix(1_700_000_015, 0) // mid-step, away from boundaries

	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		if !v.Verify(testSecret, codeAt(t, now.Add(offset)), now) {
			t.Fatalf("code at offset %s must verify", offset)
		}
	}
	for _, offset := range []time.Duration{-90 * time.Second, 90 * time.Second} {
		if v.Verify(testSecret, codeAt(t, now.Add(offset)), now) {
			t.Fatalf("code at offset %s must not verify", offset)
		}
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewVerifier(30, 1)
	now := time.Now()

	if v.Verify(testSecret, "abcdef", now) {
		t.Fatal("non-numeric code must not verify")
	}
	if v.Verify("%%%not-base32%%%", "123456", now) {
		t.Fatal("malformed secret must behave as a mismatch")
	}
}

func TestStepWindow(t *testing.T) {
	v := NewVerifier(30, 1)
	at := time.Unix(3000, 0) // step 100

	window := v.StepWindow(at)
	if len(window) != 3 {
		t.Fatalf("expected 3 steps, got %v", window)
	}
	if window[0] != 99 || window[1] != 100 || window[2] != 101 {
		t.Fatalf("unexpected window %v", window)
	}
}

func TestWindowTTLCoversRemainingSteps(t *testing.T) {
	v := NewVerifier(30, 1)

	// 15 seconds into a step: 15s remain plus one full skew step.
	at := time.Unix(3015, 0)
	if ttl := v.WindowTTL(at); ttl != 45*time.Second {
		t.Fatalf("expected 45s TTL, got %s", ttl)
	}
}
