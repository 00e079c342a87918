package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alfredjeanlab/journeys/internal/model"
	"github.com/redis/go-redis/v9"
)

func TestStatsCachesImplementInterface(t *testing.T) {
	var _ StatsCache = (*RedisStatsCache)(nil)
	var _ StatsCache = NoopStatsCache{}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		id, gen int64
		want    string
		wantGen string
	}{
		{1, 0, "journeys:stats:1:0", "journeys:stats:1:gen"},
		{42, 7, "journeys:stats:42:7", "journeys:stats:42:gen"},
		{9007199254740993, 1, "journeys:stats:9007199254740993:1", "journeys:stats:9007199254740993:gen"},
	}
	for _, tt := range tests {
		if got := Key(tt.id, tt.gen); got != tt.want {
			t.Errorf("Key(%d, %d) = %q, want %q", tt.id, tt.gen, got, tt.want)
		}
		if got := GenerationKey(tt.id); got != tt.wantGen {
			t.Errorf("GenerationKey(%d) = %q, want %q", tt.id, got, tt.wantGen)
		}
	}
}

func TestKeys_GenerationsDoNotCollide(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range []string{GenerationKey(1), Key(1, 0), Key(1, 1), Key(11, 0), GenerationKey(11)} {
		if seen[k] {
			t.Fatalf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestNoopStatsCache(t *testing.T) {
	ctx := context.Background()
	c := NoopStatsCache{}
	if err := c.Set(ctx, 1, 0, model.StepStats{"a": {Users: 2}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	stats, ok, err := c.Get(ctx, 1, 0)
	if err != nil || ok || stats != nil {
		t.Fatalf("Get = %v, %v, %v; want miss", stats, ok, err)
	}
	if err := c.Invalidate(ctx, 1); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if gen, err := c.Generation(ctx, 1); err != nil || gen != 0 {
		t.Fatalf("Generation = %d, %v; want 0, nil", gen, err)
	}
}

func TestNewRedisStatsCacheWithClient_DefaultTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	c := NewRedisStatsCacheWithClient(client, 0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
	c = NewRedisStatsCacheWithClient(client, time.Minute)
	if c.ttl != time.Minute {
		t.Errorf("ttl = %v, want %v", c.ttl, time.Minute)
	}
}

func TestNewRedisStatsCache_BadURL(t *testing.T) {
	if _, err := NewRedisStatsCache(context.Background(), "not-a-url", time.Second); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestRedisStatsCache_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	c := NewRedisStatsCacheWithClient(client, time.Second)
	defer c.Close()

	ctx := context.Background()
	if _, err := c.Generation(ctx, 1); err == nil {
		t.Error("Generation: expected error from unreachable server")
	}
	if _, _, err := c.Get(ctx, 1, 0); err == nil {
		t.Error("Get: expected error from unreachable server")
	}
	if err := c.Set(ctx, 1, 0, model.StepStats{}); err == nil {
		t.Error("Set: expected error from unreachable server")
	}
	if err := c.Invalidate(ctx, 1); err == nil {
		t.Error("Invalidate: expected error from unreachable server")
	}
}
