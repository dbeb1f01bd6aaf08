package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestChallengeStore(t *testing.T) (*ChallengeStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewChallengeStore(client, ""), mr
}

func testChallenge(method uint8) *Challenge {
	now := time.Now().UTC()
	return &Challenge{
		UserID:    "u1",
		Method:    method,
		CodeHash:  [32]byte{1, 2, 3},
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(5 * time.Minute).Unix(),
	}
}

func TestChallengeRoundTrip(t *testing.T) {
	store, _ := newTestChallengeStore(t)
	ctx := context.Background()

	want := testChallenge(ChallengeMethodSMS)
	want.LastSentAt = want.CreatedAt
	if err := store.Create(ctx, "tok1", want, 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "tok1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != want.UserID || got.Method != want.Method || got.CodeHash != want.CodeHash {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
	if got.LastSentAt != want.LastSentAt {
		t.Fatalf("lastSentAt mismatch: %d vs %d", got.LastSentAt, want.LastSentAt)
	}
}

func TestCreateReplacesLiveChallengeForSameUserAndMethod(t *testing.T) {
	store, _ := newTestChallengeStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok1", testChallenge(ChallengeMethodTOTP), 5*time.Minute); err != nil {
		t.Fatalf("Create tok1 failed: %v", err)
	}
	if err := store.Create(ctx, "tok2", testChallenge(ChallengeMethodTOTP), 5*time.Minute); err != nil {
		t.Fatalf("Create tok2 failed: %v", err)
	}

	if _, err := store.Get(ctx, "tok1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("predecessor must be deleted, got %v", err)
	}
	if _, err := store.Get(ctx, "tok2"); err != nil {
		t.Fatalf("successor must live: %v", err)
	}
}

func TestCreateKeepsChallengesOfDifferentMethods(t *testing.T) {
	store, _ := newTestChallengeStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok1", testChallenge(ChallengeMethodTOTP), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, "tok2", testChallenge(ChallengeMethodSMS), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Get(ctx, "tok1"); err != nil {
		t.Fatalf("TOTP challenge must survive an SMS creation: %v", err)
	}
}

func TestRecordFailureDeletesAtCap(t *testing.T) {
	store, _ := newTestChallengeStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok1", testChallenge(ChallengeMethodTOTP), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		attempts, exceeded, err := store.RecordFailure(ctx, "tok1", 3)
		if err != nil {
			t.Fatalf("RecordFailure %d failed: %v", i+1, err)
		}
		if exceeded {
			t.Fatalf("attempt %d must not exceed the cap", i+1)
		}
		if attempts != i+1 {
			t.Fatalf("expected post-increment count %d, got %d", i+1, attempts)
		}
	}

	attempts, exceeded, err := store.RecordFailure(ctx, "tok1", 3)
	if err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if !exceeded {
		t.Fatal("third failure must exceed the cap")
	}
	if attempts != 3 {
		t.Fatalf("expected post-increment count 3, got %d", attempts)
	}

	if _, err := store.Get(ctx, "tok1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("challenge must be deleted at the cap, got %v", err)
	}
}

func TestGetAfterTTLReportsNotFound(t *testing.T) {
	store, mr := newTestChallengeStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok1", testChallenge(ChallengeMethodTOTP), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	if _, err := store.Get(ctx, "tok1"); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound after TTL, got %v", err)
	}
}

func TestReplaceCodeSwapsHash(t *testing.T) {
	store, _ := newTestChallengeStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "tok1", testChallenge(ChallengeMethodSMS), 5*time.Minute); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newHash := [32]byte{9, 9, 9}
	sentAt := time.Now().UTC()
	if err := store.ReplaceCode(ctx, "tok1", newHash, sentAt, sentAt.Add(5*time.Minute)); err != nil {
		t.Fatalf("ReplaceCode failed: %v", err)
	}

	got, err := store.Get(ctx, "tok1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.CodeHash != newHash {
		t.Fatal("code hash must be replaced")
	}
	if got.LastSentAt != sentAt.Unix() {
		t.Fatalf("lastSentAt mismatch: %d vs %d", got.LastSentAt, sentAt.Unix())
	}
}

func TestReplaceCodeOnMissingChallenge(t *testing.T) {
	store, _ := newTestChallengeStore(t)
	ctx := context.Background()

	err := store.ReplaceCode(ctx, "gone", [32]byte{1}, time.Now(), time.Now().Add(time.Minute))
	if !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}
}
