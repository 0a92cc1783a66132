package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/config"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	"github.com/Tuns2000/Campusfix-sub000/pkg/jwt"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Project    ProjectService
	Stage      StageService
	Defect     DefectService
	Comment    CommentService
	Attachment AttachmentService
	Report     ReportService
}

// TokenBlacklist Token 黑名单（Redis 实现，可为 nil）
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	store storage.Storage,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) *Service {
	return &Service{
		Auth:       NewAuthService(repo, jwtMgr, blacklist, logger),
		User:       NewUserService(repo, logger),
		Project:    NewProjectService(repo, logger),
		Stage:      NewStageService(repo, logger),
		Defect:     NewDefectService(repo, store, logger),
		Comment:    NewCommentService(repo, logger),
		Attachment: NewAttachmentService(&cfg.Upload, repo, store, logger),
		Report:     NewReportService(repo, logger),
	}
}

// Actor 当前操作者，由认证中间件从 Token 中解析
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin 是否管理员
func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// HasRole 是否具备任一角色
func (a Actor) HasRole(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// notFound gorm.ErrRecordNotFound 转换为业务错误，其余原样返回
func notFound(err error, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func strPtr(s string) *string { return &s }

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
