package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register 自助注册，角色固定为 observer
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, gin.H{"message": "Пользователь зарегистрирован", "user": user})
}

// Login 用户登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{
		"token":      result.Token,
		"expires_in": result.ExpiresIn,
		"user":       result.User,
	})
}

// Me 当前用户信息
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"user": user})
}

// Logout 登出，当前 Token 加入黑名单
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Выход выполнен")
}

// ChangePassword 修改密码
// PUT /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Пароль изменен")
}

// UpdateProfile 修改个人资料
// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	user, err := h.authSvc.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"user": user})
}
