package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials = pkgerrors.Unauthorized("Неверный email или пароль")
	ErrUserInactive       = pkgerrors.Forbidden("Учетная запись деактивирована")
	ErrEmailTaken         = pkgerrors.Conflict("Пользователь с таким email уже существует")
	ErrWrongPassword      = pkgerrors.Validation("Неверный текущий пароль",
		pkgerrors.FieldError{Field: "old_password", Message: "Неверный текущий пароль"})
	ErrUserNotFound = pkgerrors.NotFound("Пользователь не найден")
	ErrInvalidRole  = pkgerrors.Validation("Недопустимая роль")

	// ErrAccountDisabled 已签发 Token 的账号被停用
	ErrAccountDisabled = pkgerrors.Unauthorized("Учетная запись деактивирована")
)

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Me(ctx context.Context, userID string) (*dto.UserResponse, error)
	Logout(ctx context.Context, claims *jwt.Claims) error
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	// CreateUser 以指定角色创建用户（命令行初始化管理员使用）
	CreateUser(ctx context.Context, req *dto.RegisterRequest, role string) (*dto.UserResponse, error)
	// Authenticate 校验 Token、黑名单与账号状态，角色取自数据库
	Authenticate(ctx context.Context, token string) (*jwt.Claims, error)
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
// blacklist 为 nil 时登出仅由客户端丢弃 Token
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserResponse, error) {
	return s.CreateUser(ctx, req, model.RoleObserver)
}

func (s *authService) CreateUser(ctx context.Context, req *dto.RegisterRequest, role string) (*dto.UserResponse, error) {
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.User.ExistsByEmail(ctx, email)
	if err != nil {
		s.logger.Error("查询邮箱失败", zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		MiddleName:   strings.TrimSpace(req.MiddleName),
		Position:     strings.TrimSpace(req.Position),
		Phone:        strings.TrimSpace(req.Phone),
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("user_id", user.ID), zap.String("role", role))
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 停用账号不允许登录
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 4. 签发 Token
	token, err := s.jwtMgr.Generate(jwt.Subject{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
	if err != nil {
		s.logger.Error("生成 Token 失败", zap.Error(err))
		return nil, err
	}

	return &dto.LoginResponse{
		Token:     token,
		ExpiresIn: int(s.jwtMgr.TTL().Seconds()),
		User:      dto.NewUserResponse(user),
	}, nil
}

// ────────────────────── Authenticate ──────────────────────

func (s *authService) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtMgr.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if s.blacklist != nil && claims.ID != "" {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			// Redis 不可用时降级放行
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if revoked {
			return nil, jwt.ErrTokenInvalid
		}
	}

	// 账号状态与角色以数据库为准，停用或调整角色对已签发的 Token 立即生效
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jwt.ErrTokenInvalid
		}
		s.logger.Error("查询 Token 用户失败", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	claims.Role = user.Role
	claims.Email = user.Email
	claims.FirstName = user.FirstName
	claims.LastName = user.LastName
	return claims, nil
}

// ────────────────────── Me / Logout ──────────────────────

func (s *authService) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.blacklist == nil || claims == nil || claims.ID == "" {
		return nil
	}
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Warn("Token 加入黑名单失败", zap.String("user_id", claims.UserID), zap.Error(err))
	}
	return nil
}

// ────────────────────── ChangePassword ──────────────────────

func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, ErrUserNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.repo.User.Updates(ctx, userID, map[string]interface{}{"password_hash": string(hash)}); err != nil {
		s.logger.Error("更新密码失败", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	fields := map[string]interface{}{}
	set := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	set("first_name", req.FirstName)
	set("last_name", req.LastName)
	set("middle_name", req.MiddleName)
	set("position", req.Position)
	set("phone", req.Phone)

	if len(fields) > 0 {
		if err := s.repo.User.Updates(ctx, userID, fields); err != nil {
			return nil, notFound(err, ErrUserNotFound)
		}
	}
	return s.Me(ctx, userID)
}

func validRole(role string) bool {
	for _, r := range model.Roles {
		if r == role {
			return true
		}
	}
	return false
}
