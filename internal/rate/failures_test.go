package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestFailureCounter(t *testing.T) (*FailureCounter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewFailureCounter(client, "", 15*time.Minute), mr
}

func TestFailureCounterIncrements(t *testing.T) {
	counter, _ := newTestFailureCounter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		count, resetIn, err := counter.Record(ctx, "k1")
		if err != nil {
			t.Fatalf("Record %d failed: %v", i, err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
		if resetIn <= 0 || resetIn > 15*time.Minute {
			t.Fatalf("unexpected resetIn: %s", resetIn)
		}
	}

	// Another key counts independently.
	count, _, err := counter.Record(ctx, "k2")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected independent count 1, got %d", count)
	}
}

func TestFailureCounterWindowResets(t *testing.T) {
	counter, mr := newTestFailureCounter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := counter.Record(ctx, "k1"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	mr.FastForward(16 * time.Minute)

	count, _, err := counter.Record(ctx, "k1")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a fresh window, got count %d", count)
	}
}
