package service_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"fintrack/internal/model"
	"fintrack/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func TestValidateCreate_Valid(t *testing.T) {
	in, errs := service.ValidateCreate(service.AccountInput{
		Name:    str(" Savings "),
		Type:    str("savings"),
		Balance: str("-12.50"),
	})
	require.Empty(t, errs)

	require.NotNil(t, in.Name)
	assert.Equal(t, "Savings", *in.Name)
	assert.Equal(t, model.AccountTypeSavings, *in.Type)
	assert.Equal(t, "-12.5", in.Balance.String())
	require.NotNil(t, in.IsDefault)
	assert.False(t, *in.IsDefault)
}

func TestValidateCreate_CollectsAllFieldErrors(t *testing.T) {
	_, errs := service.ValidateCreate(service.AccountInput{
		Name:    str(""),
		Type:    str("brokerage"),
		Balance: str("NaN"),
	})
	assert.Len(t, errs, 3)
	assert.Equal(t, "账户名称不能为空", errs["name"])
	assert.Equal(t, "账户类型不合法", errs["type"])
	assert.Equal(t, "余额必须是有效数字", errs["balance"])
}

func TestValidateCreate_Fields(t *testing.T) {
	tests := []struct {
		name    string
		input   service.AccountInput
		field   string
		message string
	}{
		{
			name:    "blank name",
			input:   service.AccountInput{Name: str("   "), Type: str("checking"), Balance: str("10")},
			field:   "name",
			message: "账户名称不能为空",
		},
		{
			name:    "name too long",
			input:   service.AccountInput{Name: str(strings.Repeat("a", 51)), Type: str("checking"), Balance: str("10")},
			field:   "name",
			message: "账户名称不能超过50个字符",
		},
		{
			name:    "missing type",
			input:   service.AccountInput{Name: str("ok"), Balance: str("10")},
			field:   "type",
			message: "请选择账户类型",
		},
		{
			name:    "missing balance",
			input:   service.AccountInput{Name: str("ok"), Type: str("cash")},
			field:   "balance",
			message: "请输入余额",
		},
		{
			name:    "non numeric balance",
			input:   service.AccountInput{Name: str("ok"), Type: str("cash"), Balance: str("abc")},
			field:   "balance",
			message: "余额必须是有效数字",
		},
		{
			name:    "infinite balance",
			input:   service.AccountInput{Name: str("ok"), Type: str("cash"), Balance: str("Inf")},
			field:   "balance",
			message: "余额必须是有效数字",
		},
		{
			name:    "more than eight decimal places",
			input:   service.AccountInput{Name: str("ok"), Type: str("cash"), Balance: str("0.000000001")},
			field:   "balance",
			message: "余额最多保留8位小数",
		},
		{
			name:    "exceeds integer digits",
			input:   service.AccountInput{Name: str("ok"), Type: str("cash"), Balance: str("1e30")},
			field:   "balance",
			message: "余额超出允许范围",
		},
		{
			name:    "negative exceeds integer digits",
			input:   service.AccountInput{Name: str("ok"), Type: str("cash"), Balance: str("-10000000000000000")},
			field:   "balance",
			message: "余额超出允许范围",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := service.ValidateCreate(tt.input)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.message, errs[tt.field])
		})
	}
}

func TestValidateCreate_NameLengthCountsCharacters(t *testing.T) {
	_, errs := service.ValidateCreate(service.AccountInput{
		Name:    str(strings.Repeat("钱", 50)),
		Type:    str("cash"),
		Balance: str("0"),
	})
	assert.Empty(t, errs)
}

func TestValidateCreate_BalanceFitsColumn(t *testing.T) {
	for _, raw := range []string{"0.00000001", "-9999999999999999.99999999", "1.500000000000", "1e3"} {
		in, errs := service.ValidateCreate(service.AccountInput{
			Name:    str("ok"),
			Type:    str("cash"),
			Balance: str(raw),
		})
		require.Empty(t, errs, raw)
		assert.True(t, in.Balance.Equal(in.Balance.Truncate(service.BalanceScale)), raw)
	}

	_, errs := service.ValidateUpdate(service.AccountInput{Balance: str("0.000000001")})
	assert.Equal(t, service.FieldErrors{"balance": "余额最多保留8位小数"}, errs)
}

func TestValidateCreate_AllTypes(t *testing.T) {
	for _, typ := range model.AccountTypes {
		_, errs := service.ValidateCreate(service.AccountInput{
			Name:    str("ok"),
			Type:    str(string(typ)),
			Balance: str("1"),
		})
		assert.Empty(t, errs, typ)
		assert.True(t, typ.Valid())
	}
	assert.False(t, model.AccountType("brokerage").Valid())
}

func TestValidateUpdate_OnlyPresentFields(t *testing.T) {
	in, errs := service.ValidateUpdate(service.AccountInput{Balance: str("3.25")})
	require.Empty(t, errs)
	assert.Nil(t, in.Name)
	assert.Nil(t, in.Type)
	assert.Nil(t, in.IsDefault)
	require.NotNil(t, in.Balance)
	assert.Equal(t, "3.25", in.Balance.String())

	patch := in.Patch()
	assert.Equal(t, map[string]interface{}{"balance": *in.Balance}, patch.Columns())
}

func TestValidateUpdate_Empty(t *testing.T) {
	in, errs := service.ValidateUpdate(service.AccountInput{})
	assert.Empty(t, errs)
	assert.True(t, in.Patch().IsEmpty())
}

func TestValidateUpdate_RejectsPresentInvalidField(t *testing.T) {
	_, errs := service.ValidateUpdate(service.AccountInput{Name: str("")})
	assert.Equal(t, service.FieldErrors{"name": "账户名称不能为空"}, errs)
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	errs := service.FieldErrors{"type": "b", "balance": "a", "name": "c"}
	assert.Equal(t, "balance: a; name: c; type: b", errs.Error())

	err := service.ValidationError("Create", errs)
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, service.ErrValidation, service.KindOf(err))
	assert.Equal(t, service.ErrValidation, service.KindOf(fmt.Errorf("handler: %w", err)))
	assert.Equal(t, service.ErrOperationFailed, service.KindOf(errors.New("unexpected")))
}
