package redisclient

import (
	"context"
	"testing"

	"github.com/windowhan/airbnb-demands-research/config"
	"github.com/windowhan/airbnb-demands-research/credential"
)

func TestNewWithBlankURLRunsLocalOnly(t *testing.T) {
	c, err := New(&config.Config{RedisURL: ""})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.rdb != nil {
		t.Fatal("expected a nil underlying Redis client in local-only mode")
	}
}

func TestNewWithMalformedURLDegradesGracefully(t *testing.T) {
	c, err := New(&config.Config{RedisURL: "not-a-redis-url"})
	if err == nil {
		t.Fatal("expected an error for a malformed REDIS_URL")
	}
	if c == nil {
		t.Fatal("expected a usable local-only Client even on error")
	}
	if c.rdb != nil {
		t.Fatal("expected a nil underlying Redis client after a parse failure")
	}
}

func TestSeenDigestLocalFallback(t *testing.T) {
	c, _ := New(&config.Config{RedisURL: ""})
	ctx := context.Background()

	if c.SeenDigest(ctx, "abc123") {
		t.Fatal("first observation of a digest must not be reported as seen")
	}
	if !c.SeenDigest(ctx, "abc123") {
		t.Fatal("second observation of the same digest must be reported as seen")
	}
	if c.SeenDigest(ctx, "def456") {
		t.Fatal("a distinct digest must not be reported as seen")
	}
}

func TestSeenDigestLocalFallbackEvictsOldest(t *testing.T) {
	c, _ := New(&config.Config{RedisURL: ""})
	ctx := context.Background()

	for i := 0; i < localFallbackCap+1; i++ {
		c.SeenDigest(ctx, string(rune('a'+i%26))+string(rune(i)))
	}
	if len(c.localDedup) > localFallbackCap {
		t.Fatalf("localDedup grew to %d, want capped at %d", len(c.localDedup), localFallbackCap)
	}
	oldest := string(rune('a')) + string(rune(0))
	if c.SeenDigest(ctx, oldest) {
		t.Fatal("expected the oldest digest to have been evicted")
	}
}

func TestNilClientMethodsAreNoOps(t *testing.T) {
	var c *Client
	ctx := context.Background()

	if c.SeenDigest(ctx, "x") {
		t.Fatal("nil Client.SeenDigest must report false")
	}
	if err := c.MirrorCredentials(ctx, credential.Credentials{APIKey: "k"}); err != nil {
		t.Fatalf("nil Client.MirrorCredentials must be a no-op, got %v", err)
	}
	if _, ok := c.LoadMirroredCredentials(ctx); ok {
		t.Fatal("nil Client.LoadMirroredCredentials must report false")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil Client.Close must be a no-op, got %v", err)
	}
}
