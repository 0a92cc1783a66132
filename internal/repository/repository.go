package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User       UserRepository
	Project    ProjectRepository
	Stage      StageRepository
	Defect     DefectRepository
	Comment    CommentRepository
	Attachment AttachmentRepository
	History    HistoryRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:         db,
		User:       NewUserRepo(db),
		Project:    NewProjectRepo(db),
		Stage:      NewStageRepo(db),
		Defect:     NewDefectRepo(db),
		Comment:    NewCommentRepo(db),
		Attachment: NewAttachmentRepo(db),
		History:    NewHistoryRepo(db),
	}
}

// Transaction 在同一事务中执行 fn，fn 内必须使用传入的 tx 访问数据
// fn 返回错误时整体回滚
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(NewRepository(db))
	})
}

// Ping 数据库健康检查
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
