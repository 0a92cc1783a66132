package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
)

// ── 用户模块业务错误 ──

var (
	ErrSelfRoleChange = pkgerrors.Forbidden("Нельзя изменить собственную роль")
	ErrSelfDeactivate = pkgerrors.Forbidden("Нельзя деактивировать собственную учетную запись")
)

// UserService 用户业务接口
type UserService interface {
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	GetByID(ctx context.Context, id string) (*dto.UserResponse, error)
	UpdateRole(ctx context.Context, id string, req *dto.UpdateRoleRequest, actor Actor) (*dto.UserResponse, error)
	UpdateStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest, actor Actor) (*dto.UserResponse, error)
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	req.Normalize()

	users, total, err := s.repo.User.List(ctx, repository.UserFilter{
		Role:     req.Role,
		Search:   req.Search,
		IsActive: req.IsActive,
		Page:     repository.Page{Offset: req.Offset(), Limit: req.Limit},
	})
	if err != nil {
		s.logger.Error("查询用户列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, dto.NewUserResponse(&users[i]))
	}
	return result, total, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *userService) GetByID(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── UpdateRole ──────────────────────

func (s *userService) UpdateRole(ctx context.Context, id string, req *dto.UpdateRoleRequest, actor Actor) (*dto.UserResponse, error) {
	if id == actor.UserID {
		return nil, ErrSelfRoleChange
	}
	if !validRole(req.Role) {
		return nil, ErrInvalidRole
	}
	if err := s.repo.User.Updates(ctx, id, map[string]interface{}{"role": req.Role}); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	s.logger.Info("用户角色已变更",
		zap.String("user_id", id),
		zap.String("role", req.Role),
		zap.String("operator", actor.UserID),
	)
	return s.GetByID(ctx, id)
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *userService) UpdateStatus(ctx context.Context, id string, req *dto.UpdateStatusRequest, actor Actor) (*dto.UserResponse, error) {
	active := req.IsActive != nil && *req.IsActive
	if id == actor.UserID && !active {
		return nil, ErrSelfDeactivate
	}
	if err := s.repo.User.Updates(ctx, id, map[string]interface{}{"is_active": active}); err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}

	s.logger.Info("用户状态已变更",
		zap.String("user_id", id),
		zap.Bool("is_active", active),
		zap.String("operator", actor.UserID),
	)
	return s.GetByID(ctx, id)
}

// activeAssignee 负责人必须是启用状态的 engineer 或 manager
func activeAssignee(ctx context.Context, repo *repository.Repository, id string) error {
	user, err := repo.User.GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrAssigneeInvalid)
	}
	if !user.IsActive || (user.Role != model.RoleEngineer && user.Role != model.RoleManager) {
		return ErrAssigneeInvalid
	}
	return nil
}
