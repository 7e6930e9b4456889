package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld 锁已被其他实例持有
var ErrLockHeld = errors.New("distributed lock held")

// 仅当 token 匹配时才删除，避免释放他人续上的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 分布式锁句柄
type Lock struct {
	key   string
	token string
	held  bool
}

// AcquireLock 以 SET NX PX 获取分布式锁
// Redis 未启用时返回一个空锁，由调用方的进程内互斥保证单飞。
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: buildKey(key), token: uuid.NewString()}
	if !Enabled() {
		return lock, nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := redisClient.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	lock.held = true
	return lock, nil
}

// Release 释放锁
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || !l.held || !Enabled() {
		return nil
	}
	l.held = false
	return releaseScript.Run(ctx, redisClient, []string{l.key}, l.token).Err()
}

// Held 是否真正持有 Redis 锁
func (l *Lock) Held() bool {
	return l != nil && l.held
}
