package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
)

// Response 统一响应结构
// 成功响应在此基础上平铺业务字段（如 defects / total / page）
type Response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Errors  []pkgerrors.FieldError `json:"errors,omitempty"`
}

// ── 成功响应 ──

// OK 200 成功响应，payload 平铺到顶层
func OK(c *gin.Context, payload gin.H) {
	c.JSON(http.StatusOK, withSuccess(payload))
}

// Created 201 创建成功
func Created(c *gin.Context, payload gin.H) {
	c.JSON(http.StatusCreated, withSuccess(payload))
}

// Message 200 仅返回提示信息
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message})
}

// Page 200 分页成功
// 输出 {success, <key>: list, total, page, limit, pages}
func Page(c *gin.Context, key string, list interface{}, total int64, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		key:       list,
		"total":   total,
		"page":    page,
		"limit":   limit,
		"pages":   Pages(total, limit),
	})
}

// Pages 计算总页数
func Pages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	pages := int(total) / limit
	if int(total)%limit > 0 {
		pages++
	}
	return pages
}

func withSuccess(payload gin.H) gin.H {
	h := gin.H{"success": true}
	for k, v := range payload {
		h[k] = v
	}
	return h
}

// ── 错误响应 ──

// Error 通用错误响应
func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, Response{Success: false, Message: message})
}

// ValidationError 400 带字段详情
func ValidationError(c *gin.Context, message string, fields []pkgerrors.FieldError) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Message: message, Errors: fields})
}

// ── 常见快捷方式 ──

// BadRequest 400
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// Forbidden 403
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFound 404
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// InternalError 500，细节只写日志不返回客户端
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Внутренняя ошибка сервера")
}

// AppError 按业务错误分类输出
func AppError(c *gin.Context, err *pkgerrors.AppError) {
	c.JSON(err.HTTPStatus(), Response{Success: false, Message: err.Message, Errors: err.Fields})
}
