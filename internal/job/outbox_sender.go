package job

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/infrastructure/mq"
	"fintrack/internal/model"
	"fintrack/internal/repository"
)

// OutboxSender 轮询本地消息表，把账户事件投递到 Kafka
type OutboxSender struct {
	outbox        repository.OutboxStore
	publisher     mq.Publisher
	logger        *slog.Logger
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(outbox repository.OutboxStore, publisher mq.Publisher, cfg config.OutboxConfig, logger *slog.Logger) *OutboxSender {
	s := &OutboxSender{
		outbox:        outbox,
		publisher:     publisher,
		logger:        logger.With("job", "OutboxSender"),
		interval:      cfg.Interval(),
		batchSize:     cfg.BatchSize,
		maxRetryCount: cfg.MaxRetryCount,
	}
	if s.interval <= 0 {
		s.interval = 200 * time.Millisecond
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.maxRetryCount <= 0 {
		s.maxRetryCount = 5
	}
	return s
}

// Start 阻塞运行，直到 ctx 取消
func (s *OutboxSender) Start(ctx context.Context) error {
	s.logger.Info("消息发送任务启动", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return nil
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

// ProcessPending 处理一批待发送消息，返回发送成功的条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outbox.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", "err", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if err := s.outbox.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
			// 状态没改成功，下一轮会重复投递，消费端需要按 account_id + event 幂等
			s.logger.Error("更新消息状态失败", "id", msg.ID, "err", err)
			return false
		}
		s.logger.Debug("消息发送成功", "id", msg.ID, "topic", msg.Topic, "key", msg.MessageKey)
		return true
	}

	s.logger.Warn("消息发送失败", "id", msg.ID, "retry_count", msg.RetryCount, "err", err)

	if err := s.outbox.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", "id", msg.ID, "err", err)
	}

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", "id", msg.ID, "err", err)
		} else {
			s.logger.Error("消息超过最大重试次数，标记为失败", "id", msg.ID)
		}
	}
	return false
}
