package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// ProjectSortColumns 项目列表允许的排序字段
var ProjectSortColumns = []string{"created_at", "updated_at", "name", "status", "priority", "start_date", "end_date"}

// ProjectFilter 项目列表筛选条件
type ProjectFilter struct {
	Status    string
	Priority  string
	ManagerID string
	Search    string
	Sort      Sort
	Page
}

// ProjectRepository 项目数据访问接口
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	GetWithStages(ctx context.Context, id string) (*model.Project, error)
	Exists(ctx context.Context, id string) (bool, error)
	Updates(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ProjectFilter) ([]model.Project, int64, error)
	CountDefects(ctx context.Context, projectID string) (int64, error)
	CountDefectsByProject(ctx context.Context, ids []string) (map[string]int64, error)
}

type projectRepo struct {
	db *gorm.DB
}

// NewProjectRepo 创建 ProjectRepository 实例
func NewProjectRepo(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).
		Preload("Manager").
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) GetWithStages(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).
		Preload("Manager").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("start_date ASC").Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *projectRepo) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Project{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除项目及其阶段，调用方需先确认没有关联缺陷
func (r *projectRepo) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("project_id = ?", id).Delete(&model.ProjectStage{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&model.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepo) List(ctx context.Context, f ProjectFilter) ([]model.Project, int64, error) {
	var projects []model.Project
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Project{})
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		db = db.Where("priority = ?", f.Priority)
	}
	if f.ManagerID != "" {
		db = db.Where("manager_id = ?", f.ManagerID)
	}
	if f.Search != "" {
		cols := []string{"name", "description", "address"}
		db = db.Where(searchClause(cols...), repeat(likePattern(f.Search), len(cols))...)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sort := f.Sort
	if sort.Column == "" {
		sort = Sort{Column: "created_at", Desc: true}
	}
	if err := f.Page.apply(applySort(db.Preload("Manager"), "projects", sort)).
		Find(&projects).Error; err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

func (r *projectRepo) CountDefects(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Defect{}).Where("project_id = ?", projectID).Count(&n).Error
	return n, err
}

func (r *projectRepo) CountDefectsByProject(ctx context.Context, ids []string) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ProjectID string
		Count     int64
	}
	err := r.db.WithContext(ctx).Model(&model.Defect{}).
		Select("project_id, COUNT(*) AS count").
		Where("project_id IN ?", ids).
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ProjectID] = row.Count
	}
	return out, nil
}
