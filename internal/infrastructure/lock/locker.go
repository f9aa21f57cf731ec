package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fintrack/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

// Locker 按 owner 维度的互斥
//
// Acquire 成功后返回 release，调用方必须在读写完成后调用。
type Locker interface {
	Acquire(ctx context.Context, ownerID string) (release func(), err error)
}

// RedisLockerOptions 分布式锁参数
type RedisLockerOptions struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// RedisLocker 多实例部署时使用
type RedisLocker struct {
	client *redis.Client
	opts   RedisLockerOptions
	logger *slog.Logger
}

func NewRedisLocker(client *redis.Client, opts RedisLockerOptions, logger *slog.Logger) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 100
	}
	return &RedisLocker{client: client, opts: opts, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, ownerID string) (func(), error) {
	dl := NewOwnerLock(l.client, ownerID, idgen.GenerateLockToken(), l.opts.TTL)
	if err := dl.Lock(ctx, l.opts.RetryInterval, l.opts.MaxRetries); err != nil {
		return nil, err
	}
	return func() {
		// 请求的 ctx 可能已经取消，释放锁单独给一个超时
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := dl.Unlock(unlockCtx); err != nil {
			l.logger.Warn("释放分布式锁失败，等待过期", "owner_id", ownerID, "err", err)
		}
	}, nil
}

// LocalLocker 单进程锁，memory 模式和测试使用
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Acquire(ctx context.Context, ownerID string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[ownerID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[ownerID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(ownerID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.releaseRef(ownerID, s)
		})
	}, nil
}

// 没有等待者时回收，map 不会随用户数无限增长
func (l *LocalLocker) releaseRef(ownerID string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, ownerID)
	}
}
