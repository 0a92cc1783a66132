package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 业务错误分类，决定 HTTP 状态码
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// FieldError 字段级校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError 可直接返回给客户端的业务错误
//
// 各 Service 以包级变量声明哨兵错误（如 ErrDefectNotFound），
// 需要携带动态信息时通过 Withf 派生，派生错误仍满足 errors.Is(err, 哨兵)。
type AppError struct {
	Kind    Kind
	Message string
	Fields  []FieldError

	base *AppError
}

func (e *AppError) Error() string { return e.Message }

// Is 派生错误与其哨兵视为同一错误
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e == t || (e.base != nil && e.base == t)
}

// Withf 基于当前错误派生一条带格式化信息的新错误
func (e *AppError) Withf(format string, args ...interface{}) *AppError {
	root := e
	if e.base != nil {
		root = e.base
	}
	return &AppError{
		Kind:    e.Kind,
		Message: fmt.Sprintf(format, args...),
		Fields:  e.Fields,
		base:    root,
	}
}

// HTTPStatus 错误分类对应的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ── 构造函数 ──

// Validation 400
func Validation(message string, fields ...FieldError) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

// Unauthorized 401
func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Message: message}
}

// Forbidden 403
func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// NotFound 404
func NotFound(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

// Conflict 409
func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

// As 提取错误链中的 AppError
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
