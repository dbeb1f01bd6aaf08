package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veriden/authcore/event"
)

func TestSignInWithoutMFAReturnsTokens(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	result := mustSignIn(t, env, SignInRequest{Email: "Alice@Example.com", Password: "correct-password-123"})

	if result.MFARequired {
		t.Fatal("expected no MFA step for a user without factors")
	}
	auth := result.Authentication
	if auth == nil {
		t.Fatal("expected a completed authentication")
	}
	if auth.AccessToken == "" || auth.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if auth.MFAUsed {
		t.Fatal("mfaUsed should be false")
	}
	if got := env.eventsOfType(event.TypeSessionCreated); len(got) != 1 {
		t.Fatalf("expected 1 SessionCreated event, got %d", len(got))
	}
	if got := env.eventsOfType(event.TypeUserLoggedIn); len(got) != 1 {
		t.Fatalf("expected 1 UserLoggedIn event, got %d", len(got))
	}
}

func TestSignInWrongPasswordCountsDown(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	_, err := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})

	var invalid *InvalidCredentialsError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidCredentialsError, got %v", err)
	}
	if invalid.RemainingAttempts != 4 {
		t.Fatalf("expected 4 remaining attempts, got %d", invalid.RemainingAttempts)
	}
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatal("typed error must unwrap to ErrInvalidCredentials")
	}
}

func TestSignInUnknownEmailSameMessageAsWrongPassword(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	_, unknownErr := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	_, wrongErr := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})

	if unknownErr == nil || wrongErr == nil {
		t.Fatal("both attempts must fail")
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("messages differ: %q vs %q", unknownErr.Error(), wrongErr.Error())
	}
}

func TestFailedSignInEventsCarryUserID(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})
	env.addUser(t, &User{ID: "u2", Email: "bob@example.com", Status: StatusSuspended})

	// Wrong password for a known account.
	_, _ = env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	// Inactive account with the correct password.
	_, _ = env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "bob@example.com",
		Password: "correct-password-123",
	})

	events := env.eventsOfType(event.TypeAuthenticationFailed)
	if len(events) != 2 {
		t.Fatalf("expected 2 AuthenticationFailed events, got %d", len(events))
	}
	if events[0].AggregateID != "u1" || events[0].Payload["reason"] != "INVALID_CREDENTIALS" {
		t.Fatalf("wrong-password event must carry aggregate id u1, got %q (%v)",
			events[0].AggregateID, events[0].Payload)
	}
	if events[1].AggregateID != "u2" || events[1].Payload["reason"] != "ACCOUNT_INACTIVE" {
		t.Fatalf("inactive event must carry aggregate id u2, got %q (%v)",
			events[1].AggregateID, events[1].Payload)
	}

	// Attempts against the locked account also identify the user.
	for i := 0; i < 5; i++ {
		_, _ = env.auth.SignIn(context.Background(), SignInRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})
	}
	events = env.eventsOfType(event.TypeAuthenticationFailed)
	last := events[len(events)-1]
	if last.AggregateID != "u1" || last.Payload["reason"] != "ACCOUNT_LOCKED" {
		t.Fatalf("locked event must carry aggregate id u1, got %q (%v)", last.AggregateID, last.Payload)
	}
}

func TestSignInFifthFailureLocksAccount(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = env.auth.SignIn(context.Background(), SignInRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})
	}

	var locked *AccountLockedError
	if !errors.As(lastErr, &locked) {
		t.Fatalf("expected AccountLockedError on 5th failure, got %v", lastErr)
	}
	until := time.Until(locked.LockedUntil)
	if until < 14*time.Minute || until > 16*time.Minute {
		t.Fatalf("lock window should be about 15 minutes, got %s", until)
	}
	if got := env.eventsOfType(event.TypeAccountLocked); len(got) != 1 {
		t.Fatalf("expected 1 AccountLocked event, got %d", len(got))
	}

	// Correct password is refused while the lock holds.
	_, err := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestUnknownEmailCountsDownLikeRealAccount(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	// The remaining-attempts field must not distinguish a missing account
	// from a real one under repeated probes.
	for i := 1; i <= 4; i++ {
		_, unknownErr := env.auth.SignIn(context.Background(), SignInRequest{
			Email:    "ghost@example.com",
			Password: "wrong",
		})
		_, knownErr := env.auth.SignIn(context.Background(), SignInRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})

		var unknown, known *InvalidCredentialsError
		if !errors.As(unknownErr, &unknown) || !errors.As(knownErr, &known) {
			t.Fatalf("attempt %d: expected InvalidCredentialsError for both, got %v / %v",
				i, unknownErr, knownErr)
		}
		if unknown.RemainingAttempts != known.RemainingAttempts {
			t.Fatalf("attempt %d: remaining attempts diverge: %d vs %d",
				i, unknown.RemainingAttempts, known.RemainingAttempts)
		}
		if unknown.RemainingAttempts != 5-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, 5-i, unknown.RemainingAttempts)
		}
	}

	// The fifth failure locks the missing address just like a real account.
	_, err := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "ghost@example.com",
		Password: "wrong",
	})
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError on the 5th failure, got %v", err)
	}
	if until := time.Until(locked.LockedUntil); until <= 0 || until > 16*time.Minute {
		t.Fatalf("unexpected lock window: %s", until)
	}

	// And it stays locked on the next probe.
	if _, err := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "ghost@example.com",
		Password: "wrong",
	}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestSignInExpiredLockClearsOnNextAttempt(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	for i := 0; i < 5; i++ {
		_, _ = env.auth.SignIn(context.Background(), SignInRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})
	}
	env.users.setLockedUntil("u1", time.Now().Add(-time.Minute))

	result := mustSignIn(t, env, SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})
	if result.Authentication == nil {
		t.Fatal("expected sign-in to succeed after the lock lapsed")
	}

	user, _ := env.users.FindByID(context.Background(), "u1")
	if user.Status != StatusActive || user.FailedAttempts != 0 {
		t.Fatalf("expected cleared lock state, got status=%s attempts=%d", user.Status, user.FailedAttempts)
	}
}

func TestSignInInactiveAccountDoesNotTouchCounter(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com", Status: StatusSuspended})

	_, err := env.auth.SignIn(context.Background(), SignInRequest{
		Email:    "alice@example.com",
		Password: "correct-password-123",
	})

	var inactive *AccountInactiveError
	if !errors.As(err, &inactive) {
		t.Fatalf("expected AccountInactiveError, got %v", err)
	}
	if inactive.Status != StatusSuspended {
		t.Fatalf("expected SUSPENDED, got %s", inactive.Status)
	}
	user, _ := env.users.FindByID(context.Background(), "u1")
	if user.FailedAttempts != 0 {
		t.Fatalf("counter must be untouched, got %d", user.FailedAttempts)
	}
}

func TestSignInSuccessResetsFailedAttempts(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	for i := 0; i < 3; i++ {
		_, _ = env.auth.SignIn(context.Background(), SignInRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})
	}
	mustSignIn(t, env, SignInRequest{Email: "alice@example.com", Password: "correct-password-123"})

	user, _ := env.users.FindByID(context.Background(), "u1")
	if user.FailedAttempts != 0 {
		t.Fatalf("expected reset counter, got %d", user.FailedAttempts)
	}
}

func TestTokenLifetimes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.addUser(t, &User{ID: "u1", Email: "alice@example.com"})

	result := mustSignIn(t, env, SignInRequest{Email: "alice@example.com", Password: "correct-password-123"})
	auth := result.Authentication

	if d := auth.RefreshExpiresAt.Sub(auth.AccessExpiresAt); d != 7*24*time.Hour-15*time.Minute {
		t.Fatalf("unexpected expiry spread: %s", d)
	}
}
