package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 账户类型，封闭枚举
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeCash       AccountType = "cash"
)

// AccountTypes 全部合法的账户类型（顺序即展示顺序）
var AccountTypes = []AccountType{
	AccountTypeChecking,
	AccountTypeSavings,
	AccountTypeCreditCard,
	AccountTypeCash,
}

// Valid 判断是否为合法账户类型
func (t AccountType) Valid() bool {
	for _, v := range AccountTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Account 用户资金账户表
//
// 【不变量】
//  1. 同一个 owner 下，is_active=true 的账户中最多只有一个 is_default=true
//  2. 账户只做逻辑删除（is_active=false），记录永久保留
//  3. owner_id 创建后不可修改
type Account struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	OwnerID   string          `gorm:"type:varchar(128);not null;index:idx_owner_active,priority:1" json:"owner_id"`
	Name      string          `gorm:"type:varchar(50);not null" json:"name"`
	Type      AccountType     `gorm:"type:varchar(20);not null" json:"type"`
	Balance   decimal.Decimal `gorm:"type:decimal(24,8);not null" json:"balance"` // 带符号金额，展示币种 USD
	IsDefault bool            `gorm:"not null" json:"is_default"`
	IsActive  bool            `gorm:"not null;index:idx_owner_active,priority:2" json:"is_active"` // false 表示已逻辑删除
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	// LastUpdated 用户最后一次创建或编辑的时间，降级、切换默认和删除不会改它
	LastUpdated time.Time `gorm:"autoCreateTime" json:"last_updated"`
}

func (Account) TableName() string {
	return "account"
}

// AccountPatch 账户的部分更新，nil 字段不写入
type AccountPatch struct {
	Name      *string
	Type      *AccountType
	Balance   *decimal.Decimal
	IsDefault *bool
	IsActive  *bool

	// Edited 为 true 表示用户编辑，存储层同时刷新 last_updated
	Edited bool
}

// IsEmpty 没有任何需要写入的字段
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Balance == nil && p.IsDefault == nil && p.IsActive == nil
}

// Columns 转换成 gorm Updates 使用的列名映射
func (p AccountPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Type != nil {
		cols["type"] = *p.Type
	}
	if p.Balance != nil {
		cols["balance"] = *p.Balance
	}
	if p.IsDefault != nil {
		cols["is_default"] = *p.IsDefault
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	return cols
}

// Apply 把补丁应用到内存中的账户上（不修改时间戳）
func (p AccountPatch) Apply(a *Account) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Balance != nil {
		a.Balance = *p.Balance
	}
	if p.IsDefault != nil {
		a.IsDefault = *p.IsDefault
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
}

// DefaultFlag 只修改 is_default 的补丁
func DefaultFlag(isDefault bool) AccountPatch {
	return AccountPatch{IsDefault: &isDefault}
}
