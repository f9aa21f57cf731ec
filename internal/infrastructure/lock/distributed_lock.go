package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// Redis 分布式锁
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一个用户在两个页面同时把不同账户设为默认
//
// 如果没有分布式锁：
//   请求1: 读取账户列表（A 是默认） -> 批量写：B=默认，A=非默认
//   请求2: 读取账户列表（A 是默认） -> 批量写：C=默认，A=非默认
//   结果：B 和 C 同时是默认账户
//
// 加了分布式锁：
//   请求1: 获取锁 -> 读取 -> 批量写 -> 释放锁
//   请求2: 等待... -> 获取锁 -> 读取（B 是默认） -> 批量写：C=默认，B=非默认
//
// 【实现】
//   加锁：SET key token NX EX ttl，token 标识持有者
//   释放：Lua 脚本比较 token 后再 DEL，不会误删别人的锁
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// 只有持有者才能删除锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	token      string // 持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, token string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		token:      token,
		expiration: expiration,
	}
}

// NewOwnerLock 按账户 owner 维度加锁
//
// 不变量是"同一 owner 下最多一个默认账户"，锁粒度就是 owner：
// 不同用户之间互不影响，同一用户的写操作串行执行。
func NewOwnerLock(client *redis.Client, ownerID, token string, expiration time.Duration) *DistributedLock {
	return NewDistributedLock(client, fmt.Sprintf("account:lock:owner:%s", ownerID), token, expiration)
}

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Lock 阻塞加锁，每隔 retryInterval 重试一次，最多 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，锁已过期或已被他人持有时什么都不做
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
