package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 10 || got.MaxIdleConns != 5 {
		t.Fatalf("unexpected pool sizing: %+v", got)
	}
	if got.ConnMaxLifetime != 30*time.Minute || got.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts: %+v", got)
	}
}

func TestPostgresPoolIdleClampedToOpen(t *testing.T) {
	got := PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 50}.withDefaults()
	if got.MaxIdleConns > got.MaxOpenConns {
		t.Fatalf("idle conns must not exceed open conns: %+v", got)
	}
}

func TestPostgresPoolExplicitValuesKept(t *testing.T) {
	in := PostgresPoolConfig{
		MaxOpenConns:    3,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
	}
	if got := in.withDefaults(); got != in {
		t.Fatalf("explicit config must pass through, got %+v", got)
	}
}
