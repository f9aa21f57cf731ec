package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"fintrack/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxAccountNameLength 账户名称最大字符数
const MaxAccountNameLength = 50

// 余额列为 decimal(24,8)，最多 8 位小数、16 位整数。
// 小数位超出时 MySQL 静默舍入，整数位超出时拒绝写入。
const (
	BalanceScale         = 8
	BalanceIntegerDigits = 16
)

var maxBalance = decimal.New(1, BalanceIntegerDigits)

// AccountInput 表单原始输入，nil 表示未填写
//
// 余额用字符串接收，这样"abc"、"NaN" 这类输入也能落到字段错误上，
// 而不是在 JSON 解析阶段就失败。
type AccountInput struct {
	Name      *string
	Type      *string
	Balance   *string
	IsDefault *bool
}

// ValidInput 校验通过的输入，nil 字段不写入
type ValidInput struct {
	Name      *string
	Type      *model.AccountType
	Balance   *decimal.Decimal
	IsDefault *bool
}

// Patch 转换成存储层的部分更新
func (in ValidInput) Patch() model.AccountPatch {
	return model.AccountPatch{
		Name:      in.Name,
		Type:      in.Type,
		Balance:   in.Balance,
		IsDefault: in.IsDefault,
	}
}

func (in ValidInput) becomesDefault() bool {
	return in.IsDefault != nil && *in.IsDefault
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// finite: 字符串能解析成有限浮点数（排除 NaN / Inf / 非数字）
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f, err := strconv.ParseFloat(fl.Field().String(), 64)
		return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("account_type", func(fl validator.FieldLevel) bool {
		return model.AccountType(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
	return v
}

var fieldMessages = map[string]map[string]string{
	"name": {
		"required": "账户名称不能为空",
		"max":      "账户名称不能超过" + strconv.Itoa(MaxAccountNameLength) + "个字符",
	},
	"type": {
		"required":     "请选择账户类型",
		"account_type": "账户类型不合法",
	},
	"balance": {
		"required": "请输入余额",
		"finite":   "余额必须是有效数字",
		"scale":    "余额最多保留" + strconv.Itoa(BalanceScale) + "位小数",
		"range":    "余额超出允许范围",
	},
}

// ValidateCreate 创建账户的输入校验，name / type / balance 必填
//
// 一次返回所有字段的错误，而不是遇到第一个错误就返回。
func ValidateCreate(in AccountInput) (ValidInput, FieldErrors) {
	return validateInput(in, true)
}

// ValidateUpdate 更新账户的输入校验，所有字段可选，未填写的字段既不校验也不写入
func ValidateUpdate(in AccountInput) (ValidInput, FieldErrors) {
	return validateInput(in, false)
}

func validateInput(in AccountInput, create bool) (ValidInput, FieldErrors) {
	var out ValidInput
	errs := FieldErrors{}

	if in.Name != nil || create {
		name := strings.TrimSpace(deref(in.Name))
		if msg := check("name", name, "required,max="+strconv.Itoa(MaxAccountNameLength)); msg != "" {
			errs["name"] = msg
		} else {
			out.Name = &name
		}
	}

	if in.Type != nil || create {
		raw := strings.TrimSpace(deref(in.Type))
		if msg := check("type", raw, "required,account_type"); msg != "" {
			errs["type"] = msg
		} else {
			t := model.AccountType(raw)
			out.Type = &t
		}
	}

	if in.Balance != nil || create {
		raw := strings.TrimSpace(deref(in.Balance))
		if msg := check("balance", raw, "required,finite"); msg != "" {
			errs["balance"] = msg
		} else if d, err := decimal.NewFromString(raw); err != nil {
			errs["balance"] = fieldMessages["balance"]["finite"]
		} else if msg := checkBalance(d); msg != "" {
			errs["balance"] = msg
		} else {
			out.Balance = &d
		}
	}

	if in.IsDefault != nil {
		v := *in.IsDefault
		out.IsDefault = &v
	} else if create {
		v := false
		out.IsDefault = &v
	}

	if len(errs) > 0 {
		return ValidInput{}, errs
	}
	return out, nil
}

// checkBalance 余额必须能原样存进 decimal(24,8)
func checkBalance(d decimal.Decimal) string {
	if !d.Equal(d.Truncate(BalanceScale)) {
		return fieldMessages["balance"]["scale"]
	}
	if d.Abs().Cmp(maxBalance) >= 0 {
		return fieldMessages["balance"]["range"]
	}
	return ""
}

// check 返回第一条未通过规则对应的提示，通过时返回空字符串
func check(field, value, rules string) string {
	err := validate.Var(value, rules)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[field][verrs[0].Tag()]; ok {
			return msg
		}
	}
	return field + " 不合法"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
