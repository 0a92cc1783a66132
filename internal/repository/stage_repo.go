package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// StageRepository 项目阶段数据访问接口
type StageRepository interface {
	Create(ctx context.Context, s *model.ProjectStage) error
	GetByID(ctx context.Context, id string) (*model.ProjectStage, error)
	ListByProject(ctx context.Context, projectID string) ([]model.ProjectStage, error)
	Updates(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	CountDefects(ctx context.Context, stageID string) (int64, error)
}

type stageRepo struct {
	db *gorm.DB
}

// NewStageRepo 创建 StageRepository 实例
func NewStageRepo(db *gorm.DB) StageRepository {
	return &stageRepo{db: db}
}

func (r *stageRepo) Create(ctx context.Context, s *model.ProjectStage) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *stageRepo) GetByID(ctx context.Context, id string) (*model.ProjectStage, error) {
	var s model.ProjectStage
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *stageRepo) ListByProject(ctx context.Context, projectID string) ([]model.ProjectStage, error) {
	var stages []model.ProjectStage
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("start_date ASC").Order("created_at ASC").
		Find(&stages).Error
	return stages, err
}

func (r *stageRepo) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.ProjectStage{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stageRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ProjectStage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *stageRepo) CountDefects(ctx context.Context, stageID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Defect{}).Where("stage_id = ?", stageID).Count(&n).Error
	return n, err
}
