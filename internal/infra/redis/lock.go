package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another request")

// 仅当锁值匹配时删除，避免误删他人的锁
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Lock 分布式锁句柄
type Lock struct {
	c     *goredis.Client
	key   string
	value string
}

// TryLock 以 uuid 为锁值 SETNX；Redis 未配置时返回 (nil, nil)，调用方视为无锁降级
func TryLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	c := Client()
	if c == nil {
		return nil, nil
	}
	value := uuid.NewString()
	ok, err := c.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{c: c, key: key, value: value}, nil
}

// Release 原子释放；返回 false 表示锁已过期或被他人持有
func (l *Lock) Release(ctx context.Context) (bool, error) {
	if l == nil {
		return true, nil
	}
	n, err := releaseScript.Run(ctx, l.c, []string{l.key}, l.value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
