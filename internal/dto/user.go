package dto

import "github.com/Tuns2000/Campusfix-sub000/internal/model"

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role     string `form:"role"      binding:"omitempty,oneof=admin manager engineer observer"`
	Search   string `form:"search"    binding:"omitempty,max=100"`
	IsActive *bool  `form:"is_active"`
}

// UpdateRoleRequest 修改角色
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin manager engineer observer"`
}

// UpdateStatusRequest 启用/停用用户
type UpdateStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Position   string `json:"position"`
	Phone      string `json:"phone"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

// UserBrief 嵌套在其他资源中的用户摘要
type UserBrief struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// NewUserResponse model.User → UserResponse
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		MiddleName: u.MiddleName,
		Position:   u.Position,
		Phone:      u.Phone,
		IsActive:   u.IsActive,
		CreatedAt:  formatTime(u.CreatedAt),
	}
}

// NewUserBrief 空指针返回 nil
func NewUserBrief(u *model.User) *UserBrief {
	if u == nil || u.ID == "" {
		return nil
	}
	return &UserBrief{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
}
