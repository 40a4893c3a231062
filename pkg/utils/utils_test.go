package utils

import (
	"context"
	"testing"
	"time"
)

func TestPostgresPoolConfig_WithDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()

	if got.MaxOpenConns != 25 || got.MaxIdleConns != 25 {
		t.Fatalf("unexpected pool sizing: open=%d idle=%d", got.MaxOpenConns, got.MaxIdleConns)
	}
	if got.ConnMaxLifetime != 30*time.Minute || got.ConnMaxIdleTime != 5*time.Minute {
		t.Fatalf("unexpected lifetimes: %v / %v", got.ConnMaxLifetime, got.ConnMaxIdleTime)
	}
	if got.PingTimeout != 5*time.Second || got.StatementTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts: ping=%v stmt=%v", got.PingTimeout, got.StatementTimeout)
	}
}

func TestPostgresPoolConfig_WithDefaults_KeepsExplicitValues(t *testing.T) {
	in := PostgresPoolConfig{
		MaxOpenConns:     3,
		StatementTimeout: 250 * time.Millisecond,
	}
	got := in.withDefaults()

	if got.MaxOpenConns != 3 {
		t.Fatalf("MaxOpenConns overwritten: %d", got.MaxOpenConns)
	}
	if got.StatementTimeout != 250*time.Millisecond {
		t.Fatalf("StatementTimeout overwritten: %v", got.StatementTimeout)
	}
	if got.MaxIdleConns != 25 {
		t.Fatalf("MaxIdleConns default missing: %d", got.MaxIdleConns)
	}
}

func TestRedisConfig_WithDefaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()

	if got.DialTimeout != 3*time.Second || got.ReadTimeout != 2*time.Second || got.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts: %v / %v / %v", got.DialTimeout, got.ReadTimeout, got.WriteTimeout)
	}
	if got.PoolSize != 20 || got.PoolTimeout != 4*time.Second {
		t.Fatalf("unexpected pool config: size=%d timeout=%v", got.PoolSize, got.PoolTimeout)
	}
	if got.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected ping timeout: %v", got.PingTimeout)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestIncrFailureCount_ArgumentChecks(t *testing.T) {
	ctx := context.Background()

	if _, err := IncrFailureCount(ctx, nil, "k", time.Minute); err == nil {
		t.Fatal("expected error for nil client")
	}
	if err := ClearFailureCount(ctx, nil, "k"); err == nil {
		t.Fatal("expected error for nil client")
	}
}
