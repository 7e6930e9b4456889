package cache

import (
	"context"
	"testing"
	"time"

	"github.com/settlepay/internal/config"
)

func TestAcquireLockWithoutRedis(t *testing.T) {
	if err := InitRedis(&config.RedisConfig{Enabled: false}); err != nil {
		t.Fatalf("init redis failed: %v", err)
	}
	lock, err := AcquireLock(context.Background(), "lock:test", time.Second)
	if err != nil {
		t.Fatalf("expected no error without redis, got %v", err)
	}
	if lock.Held() {
		t.Fatalf("lock should not be marked held without redis")
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release should be a no-op, got %v", err)
	}
}

func TestPublishJSONWithoutRedis(t *testing.T) {
	_ = InitRedis(nil)
	if err := PublishJSON(context.Background(), "events", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("publish should be a no-op, got %v", err)
	}
	if err := Ping(context.Background()); err != nil {
		t.Fatalf("ping should be a no-op, got %v", err)
	}
}

func TestBuildKeyUsesPrefix(t *testing.T) {
	redisPrefix = "sp"
	if got := buildKey(" lock:sweep "); got != "sp:lock:sweep" {
		t.Fatalf("unexpected key %s", got)
	}
	if got := buildKey(""); got != "sp" {
		t.Fatalf("unexpected key %s", got)
	}
}
