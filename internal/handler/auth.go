package handler

import (
	"strings"

	"fintrack/internal/config"
	"fintrack/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// Identity 身份提供方给出的当前用户信息
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// IdentityClaims 身份提供方签发的令牌内容，sub 为用户ID
type IdentityClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware 校验 Bearer 令牌（HS256），把 Identity 放进 gin.Context
//
// 这里只做令牌校验，登录流程由身份提供方负责。
// 后续所有账户操作都只使用这里解析出的用户ID。
func AuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}

	return func(c *gin.Context) {
		scheme, raw, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			response.Unauthorized(c, "缺少登录凭证")
			return
		}

		claims := &IdentityClaims{}
		if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, keyFunc); err != nil {
			response.Unauthorized(c, "登录凭证无效或已过期")
			return
		}
		if claims.Subject == "" {
			response.Unauthorized(c, "登录凭证缺少用户信息")
			return
		}

		c.Set(identityKey, Identity{
			UserID:      claims.Subject,
			Email:       claims.Email,
			DisplayName: claims.Name,
			PhotoURL:    claims.Picture,
		})
		c.Next()
	}
}

// CurrentIdentity 取出 AuthMiddleware 写入的身份
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
