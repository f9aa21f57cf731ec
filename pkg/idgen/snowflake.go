package idgen

import (
	"fmt"
	"sync"
	"time"
)

// 雪花ID
//
//	| 1 位符号 | 41 位毫秒时间 | 10 位机器号 | 12 位序列 |
//
// 账户ID必须在批次提交前就确定（新账户和默认账户降级在同一个事务里写入），
// 所以不能依赖数据库自增主键。多实例部署时每个实例的机器号必须不同。

const (
	epochMS      = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerBits   = 10
	sequenceBits = 12

	MaxWorkerID = 1<<workerBits - 1
	maxSequence = 1<<sequenceBits - 1

	workerShift = sequenceBits
	timeShift   = sequenceBits + workerBits
)

// Generator 单个机器号下的ID生成器，并发安全
type Generator struct {
	mu       sync.Mutex
	workerID int64
	lastMS   int64
	seq      int64
	now      func() time.Time
}

// New 创建生成器，workerID 取值 0-MaxWorkerID
func New(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间，当前为 %d", MaxWorkerID, workerID)
	}
	return &Generator{workerID: workerID, now: time.Now}, nil
}

// Next 返回下一个ID
//
// 时钟回拨时沿用上一次的时间戳继续分配序列号，ID 仍然单调递增。
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms < g.lastMS {
		ms = g.lastMS
	}

	if ms == g.lastMS {
		g.seq = (g.seq + 1) & maxSequence
		if g.seq == 0 {
			// 当前毫秒的序列号用完
			for ms <= g.lastMS {
				ms = g.now().UnixMilli()
			}
		}
	} else {
		g.seq = 0
	}
	g.lastMS = ms

	return (ms-epochMS)<<timeShift | g.workerID<<workerShift | g.seq
}

var (
	defaultMu  sync.Mutex
	defaultGen *Generator
)

// Init 设置进程默认的机器号，启动时调用一次
func Init(workerID int64) error {
	g, err := New(workerID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGen = g
	defaultMu.Unlock()
	return nil
}

func defaultGenerator() *Generator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultGen == nil {
		// 未调用 Init 时使用机器号 1
		defaultGen, _ = New(1)
	}
	return defaultGen
}

// NextID 使用默认生成器
func NextID() int64 {
	return defaultGenerator().Next()
}

// GenerateAccountID 账户ID，如 ACC187061907292160001
func GenerateAccountID() string {
	return fmt.Sprintf("ACC%d", NextID())
}

// GenerateLockToken 分布式锁持有者标识，释放锁时用来确认是自己加的锁
func GenerateLockToken() string {
	return fmt.Sprintf("LCK%d", NextID())
}
