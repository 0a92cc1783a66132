package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// UserHandler 用户模块 HTTP 处理器
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// List 用户列表（管理员、经理）
// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	var req dto.UserListRequest
	if !bind(c, c.ShouldBindQuery, &req) {
		return
	}
	req.Normalize()

	users, total, err := h.userSvc.List(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Page(c, "users", users, total, req.Page, req.Limit)
}

// Get 用户详情
// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	user, err := h.userSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"user": user})
}

// UpdateRole 修改角色（管理员）
// PUT /api/users/:id/role
func (h *UserHandler) UpdateRole(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateRoleRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	user, err := h.userSvc.UpdateRole(c.Request.Context(), id, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"user": user})
}

// UpdateStatus 启用/停用用户（管理员）
// PUT /api/users/:id/status
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	user, err := h.userSvc.UpdateStatus(c.Request.Context(), id, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"user": user})
}
