package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisDefaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if got.DialTimeout != 3*time.Second || got.PoolSize != 10 {
		t.Fatalf("unexpected defaults: %+v", got)
	}
	if got.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected ping timeout: %+v", got)
	}
}

func TestRedisExplicitValuesKept(t *testing.T) {
	in := RedisConfig{Addr: "localhost:6379", PoolSize: 5, DialTimeout: time.Second}
	got := in.withDefaults()
	if got.PoolSize != 5 || got.DialTimeout != time.Second {
		t.Fatalf("explicit config must pass through, got %+v", got)
	}
}

func TestOpenRedisRequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
}
