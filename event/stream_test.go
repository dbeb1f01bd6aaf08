package event

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestStreamPublisherAddsEntry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := NewStreamPublisher(client, "auth:events", 1000)

	e := New(TypeDeviceRevoked, "u1", "c1", map[string]string{"reason": "USER_REVOKED"})
	if err := pub.Publish(e); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	entries, err := mr.Stream("auth:events")
	if err != nil {
		t.Fatalf("reading stream failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(entries))
	}

	fields := map[string]string{}
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		fields[entries[0].Values[i]] = entries[0].Values[i+1]
	}
	if fields["type"] != TypeDeviceRevoked || fields["aggregateId"] != "u1" {
		t.Fatalf("unexpected stream fields: %v", fields)
	}
	if fields["payload"] == "" {
		t.Fatal("payload field must carry the JSON payload")
	}
}
