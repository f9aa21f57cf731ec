package repository

import (
	"context"

	"fintrack/internal/model"

	"gorm.io/gorm"
)

// OutboxRepository outbox_message 表
//
// 写入只发生在 AccountRepository.Commit 的事务里；
// 这里的查询和状态更新给 OutboxSender 使用。
type OutboxRepository struct {
	db *gorm.DB
}

var _ OutboxStore = (*OutboxRepository)(nil)

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// insert 在调用方的事务里写入一条待发送消息
func (r *OutboxRepository) insert(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	return tx.WithContext(ctx).Create(msg).Error
}

// GetPendingMessages 按写入顺序取出待发送消息，同一 owner 的事件保持先后
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where(&model.OutboxMessage{Status: model.OutboxStatusPending}).
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.set(ctx, id, map[string]interface{}{"status": status})
}

func (r *OutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	return r.set(ctx, id, map[string]interface{}{"retry_count": gorm.Expr("retry_count + ?", 1)})
}

// MarkAsFailed 超过重试次数，之后不再被取出
func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	return r.set(ctx, id, map[string]interface{}{"status": model.OutboxStatusFailed})
}

func (r *OutboxRepository) set(ctx context.Context, id int64, cols map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.OutboxMessage{ID: id}).
		Updates(cols).Error
}
