package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// 上下文键
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
	CtxClaims = "claims"
)

const (
	msgAuthRequired = "Требуется авторизация"
	msgTokenInvalid = "Недействительный или просроченный токен"
	msgForbidden    = "Недостаточно прав"
)

// Authenticator 校验 Token（由 AuthService 实现，含黑名单检查）
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwt.Claims, error)
}

// JWTAuth JWT 认证中间件
// 优先读取 Authorization: Bearer <token>，其次读取 ?token= 查询参数（用于浏览器直接打开的下载链接）
func JWTAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, msgAuthRequired)
			c.Abort()
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch appErr, ok := pkgerrors.As(err); {
			case ok:
				response.AppError(c, appErr)
			case errors.Is(err, jwt.ErrTokenInvalid), errors.Is(err, jwt.ErrTokenExpired):
				response.Unauthorized(c, msgTokenInvalid)
			default:
				// 数据库等内部错误交给 ErrorHandler
				_ = c.Error(err)
			}
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxClaims, claims)

		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// RoleAuth 角色权限中间件
// 检查当前用户是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Unauthorized(c, msgAuthRequired)
			c.Abort()
			return
		}

		for _, r := range allowedRoles {
			if role == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, msgForbidden)
		c.Abort()
	}
}
