package redis

import (
	"context"
	"testing"
	"time"
)

func TestRedisCacheGetSet(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)
	cache := NewRedisCache(rdb, nil)

	if _, ok := cache.Get(context.Background(), "prorata:contract:d1:2025-03"); ok {
		t.Fatal("Get on missing key should report a miss")
	}

	cache.Set(context.Background(), "prorata:contract:d1:2025-03", "0.55", time.Hour)

	value, ok := cache.Get(context.Background(), "prorata:contract:d1:2025-03")
	if !ok {
		t.Fatal("Get after Set should hit")
	}
	if value != "0.55" {
		t.Fatalf("value = %q, want %q", value, "0.55")
	}
}

func TestRedisCacheNilClientIsNoop(t *testing.T) {
	t.Parallel()

	cache := NewRedisCache(nil, nil)

	cache.Set(context.Background(), "k", "v", time.Minute)
	if _, ok := cache.Get(context.Background(), "k"); ok {
		t.Fatal("nil client cache should always miss")
	}
}
