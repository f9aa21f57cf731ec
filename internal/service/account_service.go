package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"fintrack/internal/infrastructure/lock"
	"fintrack/internal/model"
	"fintrack/internal/repository"
)

const (
	opListActive = "ListActive"
	opGetByID    = "GetByID"
	opCreate     = "Create"
	opUpdate     = "Update"
	opSoftDelete = "SoftDelete"
	opSetDefault = "SetDefault"
)

// AccountService 账户读写的唯一入口，负责维护默认账户不变量和删除前的余额校验
//
// 【默认账户不变量】
// 同一 owner 下有效账户里最多一个 is_default=true。
// 所有写操作都先拿 owner 维度的锁，再"读取 -> 批量写"，
// 同一用户的并发请求不会读到同一份旧状态。
type AccountService struct {
	store      repository.AccountStore
	locker     lock.Locker
	eventTopic string // 为空时不写 outbox
	logger     *slog.Logger
	marshal    func(v interface{}) ([]byte, error)
}

func NewAccountService(store repository.AccountStore, locker lock.Locker, eventTopic string, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:      store,
		locker:     locker,
		eventTopic: eventTopic,
		logger:     logger,
		marshal:    json.Marshal,
	}
}

// ListActive 查询用户的全部有效账户，按创建时间倒序
func (s *AccountService) ListActive(ctx context.Context, ownerID string) ([]*model.Account, error) {
	if ownerID == "" {
		return nil, newError(ErrUnauthorized, opListActive, nil)
	}
	accounts, err := s.listActive(ctx, ownerID)
	if err != nil {
		return nil, s.storeError(ErrStoreUnavailable, opListActive, err)
	}
	return accounts, nil
}

// GetByID 查询单个账户，账户不属于 ownerID 时返回 ErrUnauthorized 且不返回记录
func (s *AccountService) GetByID(ctx context.Context, accountID, ownerID string) (*model.Account, error) {
	return s.getOwned(ctx, opGetByID, accountID, ownerID)
}

// Create 创建账户，返回新账户ID
//
// 新账户设为默认时，先把该用户当前的默认账户降级，降级和插入在同一个批次里提交。
// 读取已有账户失败不算错误，按"用户还没有账户"继续创建。
func (s *AccountService) Create(ctx context.Context, ownerID string, in ValidInput) (string, error) {
	if ownerID == "" {
		return "", newError(ErrUnauthorized, opCreate, nil)
	}
	if missing := missingCreateFields(in); len(missing) > 0 {
		return "", ValidationError(opCreate, missing)
	}

	release, err := s.locker.Acquire(ctx, ownerID)
	if err != nil {
		return "", s.storeError(ErrOperationFailed, opCreate, err)
	}
	defer release()

	batch := repository.NewBatch()
	if in.becomesDefault() {
		existing, err := s.listActive(ctx, ownerID)
		if err != nil {
			s.logger.Info("读取已有账户失败，按首个账户处理", "owner_id", ownerID, "err", err)
		}
		for _, a := range existing {
			if !a.IsDefault {
				continue
			}
			if err := s.demote(batch, a); err != nil {
				return "", s.storeError(ErrOperationFailed, opCreate, err)
			}
		}
	}

	account := &model.Account{
		ID:        s.store.NewAccountID(),
		OwnerID:   ownerID,
		Name:      *in.Name,
		Type:      *in.Type,
		Balance:   *in.Balance,
		IsDefault: in.becomesDefault(),
		IsActive:  true,
	}
	batch.InsertAccount(account)
	if err := s.addEvent(batch, model.EventAccountCreated, account); err != nil {
		return "", s.storeError(ErrOperationFailed, opCreate, err)
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		return "", s.storeError(ErrOperationFailed, opCreate, err)
	}

	s.logger.Info("账户创建成功", "account_id", account.ID, "owner_id", ownerID, "is_default", account.IsDefault)
	return account.ID, nil
}

// Update 修改账户，只写入 in 中出现的字段
//
// 写入前校验账户归属；设为默认时只降级其它账户，不会降级自己。
func (s *AccountService) Update(ctx context.Context, accountID, ownerID string, in ValidInput) error {
	if ownerID == "" {
		return newError(ErrUnauthorized, opUpdate, nil)
	}

	release, err := s.locker.Acquire(ctx, ownerID)
	if err != nil {
		return s.storeError(ErrOperationFailed, opUpdate, err)
	}
	defer release()

	target, err := s.getOwned(ctx, opUpdate, accountID, ownerID)
	if err != nil {
		return err
	}
	if !target.IsActive {
		return newError(ErrNotFound, opUpdate, nil)
	}

	patch := in.Patch()
	if patch.IsEmpty() {
		return nil
	}
	patch.Edited = true

	batch := repository.NewBatch()
	if in.becomesDefault() {
		existing, err := s.listActive(ctx, ownerID)
		if err != nil {
			return s.storeError(ErrOperationFailed, opUpdate, err)
		}
		for _, a := range existing {
			if !a.IsDefault || a.ID == accountID {
				continue
			}
			if err := s.demote(batch, a); err != nil {
				return s.storeError(ErrOperationFailed, opUpdate, err)
			}
		}
	}

	batch.UpdateAccount(accountID, patch)
	patch.Apply(target)
	if err := s.addEvent(batch, model.EventAccountUpdated, target); err != nil {
		return s.storeError(ErrOperationFailed, opUpdate, err)
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return newError(ErrNotFound, opUpdate, err)
		}
		return s.storeError(ErrOperationFailed, opUpdate, err)
	}
	return nil
}

// SoftDelete 逻辑删除账户，余额必须为零
//
// 删除只是把 is_active 和 is_default 置为 false，记录保留。
func (s *AccountService) SoftDelete(ctx context.Context, accountID, ownerID string) error {
	if ownerID == "" {
		return newError(ErrUnauthorized, opSoftDelete, nil)
	}

	release, err := s.locker.Acquire(ctx, ownerID)
	if err != nil {
		return s.storeError(ErrOperationFailed, opSoftDelete, err)
	}
	defer release()

	account, err := s.getOwned(ctx, opSoftDelete, accountID, ownerID)
	if err != nil {
		return err
	}
	if !account.Balance.IsZero() {
		return newError(ErrBalanceNotZero, opSoftDelete, nil)
	}

	inactive, notDefault := false, false
	patch := model.AccountPatch{IsActive: &inactive, IsDefault: &notDefault}

	batch := repository.NewBatch()
	batch.UpdateAccount(accountID, patch)
	patch.Apply(account)
	if err := s.addEvent(batch, model.EventAccountDeleted, account); err != nil {
		return s.storeError(ErrOperationFailed, opSoftDelete, err)
	}

	if err := s.store.Commit(ctx, batch); err != nil {
		return s.storeError(ErrOperationFailed, opSoftDelete, err)
	}

	s.logger.Info("账户已删除", "account_id", accountID, "owner_id", ownerID)
	return nil
}

// SetDefault 把指定账户设为默认，同一批次里把该用户其它有效账户全部设为非默认
//
// 只写入状态有变化的账户，重复调用不会产生新的写入。
func (s *AccountService) SetDefault(ctx context.Context, accountID, ownerID string) error {
	if ownerID == "" {
		return newError(ErrUnauthorized, opSetDefault, nil)
	}

	release, err := s.locker.Acquire(ctx, ownerID)
	if err != nil {
		return s.storeError(ErrOperationFailed, opSetDefault, err)
	}
	defer release()

	target, err := s.getOwned(ctx, opSetDefault, accountID, ownerID)
	if err != nil {
		return err
	}
	if !target.IsActive {
		return newError(ErrNotFound, opSetDefault, nil)
	}

	accounts, err := s.listActive(ctx, ownerID)
	if err != nil {
		return s.storeError(ErrOperationFailed, opSetDefault, err)
	}

	batch := repository.NewBatch()
	found := false
	for _, a := range accounts {
		want := a.ID == accountID
		found = found || want
		if a.IsDefault == want {
			continue
		}
		batch.UpdateAccount(a.ID, model.DefaultFlag(want))
		a.IsDefault = want
		if err := s.addEvent(batch, model.EventAccountDefaultChanged, a); err != nil {
			return s.storeError(ErrOperationFailed, opSetDefault, err)
		}
	}
	if !found && !target.IsDefault {
		batch.UpdateAccount(target.ID, model.DefaultFlag(true))
		target.IsDefault = true
		if err := s.addEvent(batch, model.EventAccountDefaultChanged, target); err != nil {
			return s.storeError(ErrOperationFailed, opSetDefault, err)
		}
	}

	if batch.Len() == 0 {
		return nil
	}
	if err := s.store.Commit(ctx, batch); err != nil {
		return s.storeError(ErrOperationFailed, opSetDefault, err)
	}

	s.logger.Info("默认账户已切换", "account_id", accountID, "owner_id", ownerID)
	return nil
}

func (s *AccountService) listActive(ctx context.Context, ownerID string) ([]*model.Account, error) {
	accounts, err := s.store.QueryAccounts(ctx, repository.ActiveOf(ownerID))
	if err != nil {
		return nil, err
	}
	// 存储层不保证时间戳精度，相同时间的顺序不固定
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (s *AccountService) getOwned(ctx context.Context, op, accountID, ownerID string) (*model.Account, error) {
	if ownerID == "" {
		return nil, newError(ErrUnauthorized, op, nil)
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, newError(ErrNotFound, op, nil)
		}
		return nil, s.storeError(ErrOperationFailed, op, err)
	}
	if account.OwnerID != ownerID {
		s.logger.Warn("拒绝访问他人账户", "op", op, "account_id", accountID, "owner_id", ownerID)
		return nil, newError(ErrUnauthorized, op, nil)
	}
	return account, nil
}

func (s *AccountService) demote(batch *repository.Batch, a *model.Account) error {
	batch.UpdateAccount(a.ID, model.DefaultFlag(false))
	a.IsDefault = false
	return s.addEvent(batch, model.EventAccountDefaultChanged, a)
}

// addEvent 把账户事件加入批次，和账户变更一起提交
func (s *AccountService) addEvent(batch *repository.Batch, event string, a *model.Account) error {
	if s.eventTopic == "" {
		return nil
	}
	payload, err := s.marshal(model.AccountEvent{
		Event:      event,
		AccountID:  a.ID,
		OwnerID:    a.OwnerID,
		IsDefault:  a.IsDefault,
		IsActive:   a.IsActive,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("序列化账户事件失败: %w", err)
	}
	batch.AddOutbox(&model.OutboxMessage{
		MessageKey: a.OwnerID,
		Topic:      s.eventTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
	return nil
}

// storeError 记录底层错误并包装成粗粒度错误，原始错误保留在 Err 里
func (s *AccountService) storeError(kind error, op string, cause error) *Error {
	s.logger.Error("账户操作失败", "op", op, "err", cause)
	return newError(kind, op, cause)
}

func missingCreateFields(in ValidInput) FieldErrors {
	missing := FieldErrors{}
	if in.Name == nil {
		missing["name"] = fieldMessages["name"]["required"]
	}
	if in.Type == nil {
		missing["type"] = fieldMessages["type"]["required"]
	}
	if in.Balance == nil {
		missing["balance"] = fieldMessages["balance"]["required"]
	}
	return missing
}
