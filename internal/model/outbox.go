package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 账户事件类型
const (
	EventAccountCreated        = "account.created"
	EventAccountUpdated        = "account.updated"
	EventAccountDeleted        = "account.deleted"
	EventAccountDefaultChanged = "account.default_changed"
)

// OutboxMessage 本地消息表
// 与账户变更写在同一个批次里提交，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(128);not null" json:"message_key"` // 使用 owner_id，保证同一用户的事件有序
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// AccountEvent 账户事件消息体
type AccountEvent struct {
	Event      string `json:"event"`
	AccountID  string `json:"account_id"`
	OwnerID    string `json:"owner_id"`
	IsDefault  bool   `json:"is_default"`
	IsActive   bool   `json:"is_active"`
	OccurredAt string `json:"occurred_at"`
}
