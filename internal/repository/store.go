package repository

import (
	"context"
	"errors"

	"fintrack/internal/model"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrEmptyPatch      = errors.New("更新内容为空")
)

// AccountQuery 按字段相等过滤，nil 表示不过滤该字段
type AccountQuery struct {
	OwnerID   string
	IsActive  *bool
	IsDefault *bool
}

// ActiveOf 查询某个用户的全部有效账户
func ActiveOf(ownerID string) AccountQuery {
	active := true
	return AccountQuery{OwnerID: ownerID, IsActive: &active}
}

// AccountStore 文档存储客户端
//
// 【约定】
//   - GetAccount 找不到时返回 ErrAccountNotFound
//   - created_at / updated_at 由存储层在写入时生成
//   - last_updated 在插入和 Edited 补丁时由存储层生成
//   - Commit 中的所有操作要么全部生效，要么全部不生效
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	QueryAccounts(ctx context.Context, q AccountQuery) ([]*model.Account, error)
	InsertAccount(ctx context.Context, account *model.Account) (string, error)
	UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error
	// NewAccountID 为批次中的插入预先分配 ID
	NewAccountID() string
	Commit(ctx context.Context, batch *Batch) error
}

// OutboxStore 本地消息表的读写
type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

type opKind int

const (
	opInsertAccount opKind = iota
	opUpdateAccount
	opInsertOutbox
)

type op struct {
	kind    opKind
	id      string
	account *model.Account
	patch   model.AccountPatch
	message *model.OutboxMessage
}

// Batch 原子批量写
//
// 一个批次可以同时包含账户插入、账户更新和 outbox 消息，
// 顺序执行，任意一步失败则整体回滚。
type Batch struct {
	ops []op
}

func NewBatch() *Batch {
	return &Batch{}
}

// InsertAccount 插入账户，account.ID 必须已经通过 NewAccountID 分配
func (b *Batch) InsertAccount(account *model.Account) {
	b.ops = append(b.ops, op{kind: opInsertAccount, id: account.ID, account: account})
}

func (b *Batch) UpdateAccount(id string, patch model.AccountPatch) {
	b.ops = append(b.ops, op{kind: opUpdateAccount, id: id, patch: patch})
}

func (b *Batch) AddOutbox(msg *model.OutboxMessage) {
	b.ops = append(b.ops, op{kind: opInsertOutbox, message: msg})
}

func (b *Batch) Len() int {
	return len(b.ops)
}

