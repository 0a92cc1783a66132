package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 注册请求，角色固定为 observer
type RegisterRequest struct {
	Email      string `json:"email"       binding:"required,email,max=255"`
	Password   string `json:"password"    binding:"required,password"`
	FirstName  string `json:"first_name"  binding:"required,notblank,max=100"`
	LastName   string `json:"last_name"   binding:"required,notblank,max=100"`
	MiddleName string `json:"middle_name" binding:"omitempty,max=100"`
	Position   string `json:"position"    binding:"omitempty,max=150"`
	Phone      string `json:"phone"       binding:"omitempty,phone"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,password"`
}

// UpdateProfileRequest 修改个人资料
type UpdateProfileRequest struct {
	FirstName  *string `json:"first_name"  binding:"omitnil,notblank,max=100"`
	LastName   *string `json:"last_name"   binding:"omitnil,notblank,max=100"`
	MiddleName *string `json:"middle_name" binding:"omitnil,max=100"`
	Position   *string `json:"position"    binding:"omitnil,max=150"`
	Phone      *string `json:"phone"       binding:"omitempty,phone"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int          `json:"expires_in"` // 秒
	User      UserResponse `json:"user"`
}
