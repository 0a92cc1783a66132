package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// AttachmentRepository 附件元数据访问接口
type AttachmentRepository interface {
	CreateBatch(ctx context.Context, items []model.Attachment) error
	GetByID(ctx context.Context, id string) (*model.Attachment, error)
	ListByDefect(ctx context.Context, defectID string) ([]model.Attachment, error)
	ListAll(ctx context.Context) ([]model.Attachment, error)
	Delete(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type attachmentRepo struct {
	db *gorm.DB
}

// NewAttachmentRepo 创建 AttachmentRepository 实例
func NewAttachmentRepo(db *gorm.DB) AttachmentRepository {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) CreateBatch(ctx context.Context, items []model.Attachment) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *attachmentRepo) GetByID(ctx context.Context, id string) (*model.Attachment, error) {
	var a model.Attachment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attachmentRepo) ListByDefect(ctx context.Context, defectID string) ([]model.Attachment, error) {
	var items []model.Attachment
	err := r.db.WithContext(ctx).
		Where("defect_id = ?", defectID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}

// ListAll 全部附件记录（对账使用）
func (r *attachmentRepo) ListAll(ctx context.Context) ([]model.Attachment, error) {
	var items []model.Attachment
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *attachmentRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Attachment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *attachmentRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Attachment{})
	return res.RowsAffected, res.Error
}
