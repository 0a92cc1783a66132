package handler

import (
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Tuns2000/Campusfix-sub000/internal/api/middleware"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
)

var errUnauthenticated = pkgerrors.Unauthorized("Требуется авторизация")

const msgInvalidID = "Некорректный идентификатор"

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// JWT 中间件未注入时写入 401，调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	s := c.GetString(middleware.CtxUserID)
	if s == "" {
		_ = c.Error(errUnauthenticated)
		return "", false
	}
	return s, true
}

// MustGetActor 当前操作者（user_id + role）
func MustGetActor(c *gin.Context) (service.Actor, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Role: c.GetString(middleware.CtxRole)}, true
}

// MustGetClaims 完整的 Token 声明（登出时需要 jti 与过期时间）
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.CtxClaims)
	claims, ok := v.(*jwt.Claims)
	if !exists || !ok || claims == nil {
		_ = c.Error(errUnauthenticated)
		return nil, false
	}
	return claims, true
}

// ParamID 读取路径参数并校验为 UUID
// 非法值在到达数据库前以 400 拒绝
func ParamID(c *gin.Context, name string) (string, bool) {
	id := c.Param(name)
	if _, err := uuid.Parse(id); err != nil {
		_ = c.Error(pkgerrors.Validation(msgInvalidID, pkgerrors.FieldError{
			Field:   name,
			Message: "должен быть UUID",
		}))
		return "", false
	}
	return id, true
}

// bind 统一的请求绑定，失败交给 ErrorHandler 翻译为字段错误
func bind(c *gin.Context, fn func(obj any) error, obj any) bool {
	if err := fn(obj); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}

// contentDisposition 带 RFC 5987 编码文件名的下载头
func contentDisposition(kind, filename string) string {
	return kind + "; filename*=UTF-8''" + url.PathEscape(filename)
}
