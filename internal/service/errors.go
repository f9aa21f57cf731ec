package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 错误类型（粗粒度），展示层根据类型决定提示
var (
	ErrValidation       = errors.New("参数校验失败")
	ErrUnauthorized     = errors.New("无权访问该账户")
	ErrNotFound         = errors.New("账户不存在")
	ErrBalanceNotZero   = errors.New("账户余额不为零，不能删除")
	ErrStoreUnavailable = errors.New("存储服务不可用")
	ErrOperationFailed  = errors.New("操作失败")
)

// FieldErrors 字段名 -> 错误提示
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return strings.Join(parts, "; ")
}

// Error 账户服务对外返回的错误
//
//	errors.Is(err, ErrBalanceNotZero) 判断类型
//	errors.As(err, &e) 取出 Op / Fields
//	errors.Unwrap(err) 取出底层存储错误（只用于日志排查）
type Error struct {
	Kind   error
	Op     string
	Fields FieldErrors
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if len(e.Fields) > 0 {
		msg += " (" + e.Fields.Error() + ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// ValidationError 把字段错误包装成 ErrValidation
func ValidationError(op string, fields FieldErrors) *Error {
	return &Error{Kind: ErrValidation, Op: op, Fields: fields}
}

// KindOf 返回错误类型，非账户服务错误一律视为 ErrOperationFailed
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrOperationFailed
}
