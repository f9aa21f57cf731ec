package repository

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/model"
	"fintrack/pkg/idgen"

	"gorm.io/gorm"
)

// AccountRepository 基于 gorm/MySQL 的账户存储
type AccountRepository struct {
	db         *gorm.DB
	outboxRepo *OutboxRepository
}

var _ AccountStore = (*AccountRepository)(nil)

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{
		db:         db,
		outboxRepo: NewOutboxRepository(db),
	}
}

func (r *AccountRepository) NewAccountID() string {
	return idgen.GenerateAccountID()
}

func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) QueryAccounts(ctx context.Context, q AccountQuery) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where(queryConditions(q)).
		Order("created_at DESC").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) InsertAccount(ctx context.Context, account *model.Account) (string, error) {
	if account.ID == "" {
		account.ID = r.NewAccountID()
	}
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return "", err
	}
	return account.ID, nil
}

func (r *AccountRepository) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) error {
	return updateAccount(ctx, r.db, id, patch)
}

// Commit 在一个数据库事务里执行整个批次
func (r *AccountRepository) Commit(ctx context.Context, batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range batch.ops {
			switch o.kind {
			case opInsertAccount:
				if err := tx.WithContext(ctx).Create(o.account).Error; err != nil {
					return fmt.Errorf("插入账户失败: %w", err)
				}
			case opUpdateAccount:
				if err := updateAccount(ctx, tx, o.id, o.patch); err != nil {
					return fmt.Errorf("更新账户失败: id=%s: %w", o.id, err)
				}
			case opInsertOutbox:
				if err := r.outboxRepo.insert(ctx, tx, o.message); err != nil {
					return fmt.Errorf("写入消息失败: %w", err)
				}
			}
		}
		return nil
	})
}

func updateAccount(ctx context.Context, db *gorm.DB, id string, patch model.AccountPatch) error {
	if patch.IsEmpty() {
		return ErrEmptyPatch
	}
	cols := patch.Columns()
	if patch.Edited {
		cols["last_updated"] = db.NowFunc()
	}
	// DSN 开启了 clientFoundRows，RowsAffected 是匹配行数而不是变更行数
	result := db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func queryConditions(q AccountQuery) map[string]interface{} {
	cond := make(map[string]interface{})
	if q.OwnerID != "" {
		cond["owner_id"] = q.OwnerID
	}
	if q.IsActive != nil {
		cond["is_active"] = *q.IsActive
	}
	if q.IsDefault != nil {
		cond["is_default"] = *q.IsDefault
	}
	return cond
}
