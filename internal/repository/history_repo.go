package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// HistoryRepository 缺陷变更历史访问接口（只追加）
type HistoryRepository interface {
	Append(ctx context.Context, entries []model.DefectHistory) error
	ListByDefect(ctx context.Context, defectID string) ([]model.DefectHistory, error)
}

type historyRepo struct {
	db *gorm.DB
}

// NewHistoryRepo 创建 HistoryRepository 实例
func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db: db}
}

func (r *historyRepo) Append(ctx context.Context, entries []model.DefectHistory) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Changer").Create(&entries).Error
}

func (r *historyRepo) ListByDefect(ctx context.Context, defectID string) ([]model.DefectHistory, error) {
	var items []model.DefectHistory
	err := r.db.WithContext(ctx).
		Preload("Changer").
		Where("defect_id = ?", defectID).
		Order("created_at ASC").Order("id ASC").
		Find(&items).Error
	return items, err
}
