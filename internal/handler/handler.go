package handler

import (
	"errors"
	"strconv"
	"strings"

	"fintrack/internal/service"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 账户接口处理器
type Handler struct {
	accountService *service.AccountService
}

func NewHandler(accountService *service.AccountService) *Handler {
	return &Handler{accountService: accountService}
}

// flexNumber 余额既可以传 JSON 数字也可以传字符串，交给校验层统一判断
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	*n = flexNumber(s)
	return nil
}

// AccountRequest 创建 / 修改账户请求，修改时未传的字段保持不变
type AccountRequest struct {
	Name      *string     `json:"name"`
	Type      *string     `json:"type"`
	Balance   *flexNumber `json:"balance"`
	IsDefault *bool       `json:"is_default"`
}

func (r AccountRequest) input() service.AccountInput {
	in := service.AccountInput{
		Name:      r.Name,
		Type:      r.Type,
		IsDefault: r.IsDefault,
	}
	if r.Balance != nil {
		s := string(*r.Balance)
		in.Balance = &s
	}
	return in
}

// Me 当前登录用户
// GET /api/v1/me
func (h *Handler) Me(c *gin.Context) {
	identity, _ := CurrentIdentity(c)
	response.Success(c, identity)
}

// ListAccounts 查询当前用户的有效账户
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	accounts, err := h.accountService.ListActive(c.Request.Context(), identity.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  accounts,
		"total": len(accounts),
	})
}

// GetAccount 查询账户详情
// GET /api/v1/accounts/:id
func (h *Handler) GetAccount(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	account, err := h.accountService.GetByID(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, account)
}

// CreateAccount 创建账户
// POST /api/v1/accounts
func (h *Handler) CreateAccount(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	in, fieldErrs := service.ValidateCreate(req.input())
	if len(fieldErrs) > 0 {
		response.ValidationError(c, fieldErrs)
		return
	}

	id, err := h.accountService.Create(c.Request.Context(), identity.UserID, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// UpdateAccount 修改账户
// PUT /api/v1/accounts/:id
func (h *Handler) UpdateAccount(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	in, fieldErrs := service.ValidateUpdate(req.input())
	if len(fieldErrs) > 0 {
		response.ValidationError(c, fieldErrs)
		return
	}

	if err := h.accountService.Update(c.Request.Context(), c.Param("id"), identity.UserID, in); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "账户已更新"})
}

// DeleteAccount 删除账户（逻辑删除，余额必须为零）
// DELETE /api/v1/accounts/:id
func (h *Handler) DeleteAccount(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	if err := h.accountService.SoftDelete(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "账户已删除"})
}

// SetDefaultAccount 设为默认账户
// POST /api/v1/accounts/:id/default
func (h *Handler) SetDefaultAccount(c *gin.Context) {
	identity, _ := CurrentIdentity(c)

	if err := h.accountService.SetDefault(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "默认账户已更新"})
}

// fail 把服务错误映射成响应码，底层错误只进日志不返回给前端
func (h *Handler) fail(c *gin.Context, err error) {
	switch service.KindOf(err) {
	case service.ErrValidation:
		var svcErr *service.Error
		errors.As(err, &svcErr)
		response.ValidationError(c, svcErr.Fields)
	case service.ErrUnauthorized:
		response.BusinessError(c, response.CodeForbidden, service.ErrUnauthorized.Error())
	case service.ErrNotFound:
		response.BusinessError(c, response.CodeAccountNotFound, service.ErrNotFound.Error())
	case service.ErrBalanceNotZero:
		response.BusinessError(c, response.CodeBalanceNotZero, service.ErrBalanceNotZero.Error())
	case service.ErrStoreUnavailable:
		response.BusinessError(c, response.CodeStoreUnavailable, "账户加载失败，请稍后重试")
	default:
		response.ServerError(c, "操作失败，请稍后重试")
	}
}
