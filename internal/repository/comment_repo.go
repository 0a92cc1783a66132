package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// CommentRepository 评论数据访问接口
type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	ListByDefect(ctx context.Context, defectID string) ([]model.Comment, error)
	UpdateText(ctx context.Context, id, text string) error
	Delete(ctx context.Context, id string) error
}

type commentRepo struct {
	db *gorm.DB
}

// NewCommentRepo 创建 CommentRepository 实例
func NewCommentRepo(db *gorm.DB) CommentRepository {
	return &commentRepo{db: db}
}

func (r *commentRepo) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Omit("Author").Create(c).Error
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *commentRepo) ListByDefect(ctx context.Context, defectID string) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("defect_id = ?", defectID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepo) UpdateText(ctx context.Context, id, text string) error {
	res := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).Update("text", text)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
