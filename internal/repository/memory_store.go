package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fintrack/internal/model"

	"github.com/google/uuid"
)

// MemoryStore 进程内存储，用于本地开发（store.driver=memory）和单元测试
//
// 读写都会复制记录，调用方拿到的对象与存储内部互不影响。
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	outbox   []*model.OutboxMessage
	outboxID int64
	failures map[string]error

	// Now 生成写入时间戳，测试里可以替换成可控的时钟
	Now func() time.Time
}

var (
	_ AccountStore = (*MemoryStore)(nil)
	_ OutboxStore  = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]model.Account),
		failures: make(map[string]error),
		Now:      time.Now,
	}
}

// SetError 让指定方法（如 "QueryAccounts"、"Commit"）之后的调用都返回 err，传 nil 取消
func (m *MemoryStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

func (m *MemoryStore) NewAccountID() string {
	return uuid.NewString()
}

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "GetAccount"); err != nil {
		return nil, err
	}
	account, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (m *MemoryStore) QueryAccounts(ctx context.Context, q AccountQuery) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "QueryAccounts"); err != nil {
		return nil, err
	}
	var result []*model.Account
	for _, account := range m.accounts {
		if !matches(account, q) {
			continue
		}
		a := account
		result = append(result, &a)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) InsertAccount(ctx context.Context, account *model.Account) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "InsertAccount"); err != nil {
		return "", err
	}
	if account.ID == "" {
		account.ID = m.NewAccountID()
	}
	m.insert(m.accounts, account, m.Now())
	return account.ID, nil
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "UpdateAccount"); err != nil {
		return err
	}
	return m.update(m.accounts, id, patch, m.Now())
}

// Commit 先在副本上执行全部操作，全部成功后再替换，保证原子性
func (m *MemoryStore) Commit(ctx context.Context, batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "Commit"); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}

	staged := make(map[string]model.Account, len(m.accounts))
	for id, a := range m.accounts {
		staged[id] = a
	}
	var messages []*model.OutboxMessage
	now := m.Now()

	for _, o := range batch.ops {
		switch o.kind {
		case opInsertAccount:
			m.insert(staged, o.account, now)
		case opUpdateAccount:
			if err := m.update(staged, o.id, o.patch, now); err != nil {
				return err
			}
		case opInsertOutbox:
			messages = append(messages, o.message)
		}
	}

	m.accounts = staged
	for _, msg := range messages {
		m.outboxID++
		msg.ID = m.outboxID
		if msg.Status == "" {
			msg.Status = model.OutboxStatusPending
		}
		msg.CreatedAt = now
		msg.UpdatedAt = now
		stored := *msg
		m.outbox = append(m.outbox, &stored)
	}
	return nil
}

func (m *MemoryStore) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, "GetPendingMessages"); err != nil {
		return nil, err
	}
	var result []*model.OutboxMessage
	for _, msg := range m.outbox {
		if msg.Status != model.OutboxStatusPending {
			continue
		}
		c := *msg
		result = append(result, &c)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	return m.modifyOutbox(ctx, "UpdateStatus", id, func(msg *model.OutboxMessage) {
		msg.Status = status
	})
}

func (m *MemoryStore) IncrementRetryCount(ctx context.Context, id int64) error {
	return m.modifyOutbox(ctx, "IncrementRetryCount", id, func(msg *model.OutboxMessage) {
		msg.RetryCount++
	})
}

func (m *MemoryStore) MarkAsFailed(ctx context.Context, id int64) error {
	return m.modifyOutbox(ctx, "MarkAsFailed", id, func(msg *model.OutboxMessage) {
		msg.Status = model.OutboxStatusFailed
	})
}

// Messages 返回全部 outbox 消息的副本
func (m *MemoryStore) Messages() []model.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.OutboxMessage, 0, len(m.outbox))
	for _, msg := range m.outbox {
		result = append(result, *msg)
	}
	return result
}

func (m *MemoryStore) modifyOutbox(ctx context.Context, method string, id int64, fn func(*model.OutboxMessage)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx, method); err != nil {
		return err
	}
	for _, msg := range m.outbox {
		if msg.ID == id {
			fn(msg)
			msg.UpdatedAt = m.Now()
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) insert(accounts map[string]model.Account, account *model.Account, now time.Time) {
	account.CreatedAt = now
	account.UpdatedAt = now
	account.LastUpdated = now
	accounts[account.ID] = *account
}

func (m *MemoryStore) update(accounts map[string]model.Account, id string, patch model.AccountPatch, now time.Time) error {
	if patch.IsEmpty() {
		return ErrEmptyPatch
	}
	account, ok := accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	patch.Apply(&account)
	account.UpdatedAt = now
	if patch.Edited {
		account.LastUpdated = now
	}
	accounts[id] = account
	return nil
}

func (m *MemoryStore) check(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.failures[method]
}

func matches(a model.Account, q AccountQuery) bool {
	if q.OwnerID != "" && a.OwnerID != q.OwnerID {
		return false
	}
	if q.IsActive != nil && a.IsActive != *q.IsActive {
		return false
	}
	if q.IsDefault != nil && a.IsDefault != *q.IsDefault {
		return false
	}
	return true
}
