package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock Redis 分布式锁
// 加锁：SET key value NX EX timeout；释放：Lua 脚本校验 value 后删除
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识，释放时校验避免误删他人的锁
	expiration time.Duration
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// "检查+删除" 必须原子执行，否则过期后可能删掉其他持有者的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewJobLock 创建后台任务锁，保证多实例部署时同一任务只有一个执行者
func NewJobLock(client *redis.Client, jobName, holder string, expiration time.Duration) *DistributedLock {
	key := fmt.Sprintf("job:lock:%s", jobName)
	return NewDistributedLock(client, key, holder, expiration)
}
