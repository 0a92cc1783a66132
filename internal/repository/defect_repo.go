package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Tuns2000/Campusfix-sub000/internal/model"
)

// DefectSortColumns 缺陷列表允许的排序字段
var DefectSortColumns = []string{"created_at", "updated_at", "title", "status", "priority", "due_date"}

// DefectFilter 缺陷列表筛选条件，空字段不参与过滤
type DefectFilter struct {
	ProjectID  string
	StageID    string
	Status     string
	Priority   string
	AssignedTo string
	ReportedBy string
	Search     string
	Sort       Sort
	Page
}

// DefectRepository 缺陷数据访问接口
type DefectRepository interface {
	Create(ctx context.Context, d *model.Defect) error
	GetByID(ctx context.Context, id string) (*model.Defect, error)
	// GetDetail 附带项目、阶段、报告人、负责人
	GetDetail(ctx context.Context, id string) (*model.Defect, error)
	Updates(ctx context.Context, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f DefectFilter) ([]model.Defect, int64, error)
	CountBy(ctx context.Context, column, projectID string) (map[string]int64, error)
	CountOverdue(ctx context.Context, projectID string, today time.Time) (int64, error)
}

type defectRepo struct {
	db *gorm.DB
}

// NewDefectRepo 创建 DefectRepository 实例
func NewDefectRepo(db *gorm.DB) DefectRepository {
	return &defectRepo{db: db}
}

func (r *defectRepo) Create(ctx context.Context, d *model.Defect) error {
	return r.db.WithContext(ctx).Omit("Project", "Stage", "Reporter", "Assignee").Create(d).Error
}

func (r *defectRepo) GetByID(ctx context.Context, id string) (*model.Defect, error) {
	var d model.Defect
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *defectRepo) GetDetail(ctx context.Context, id string) (*model.Defect, error) {
	var d model.Defect
	err := withRelations(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *defectRepo) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Defect{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除缺陷及其评论、附件记录、历史
// 附件文件由调用方在事务提交后清理
func (r *defectRepo) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	for _, m := range []interface{}{&model.Comment{}, &model.Attachment{}, &model.DefectHistory{}} {
		if err := db.Where("defect_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}
	res := db.Where("id = ?", id).Delete(&model.Defect{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *defectRepo) List(ctx context.Context, f DefectFilter) ([]model.Defect, int64, error) {
	var defects []model.Defect
	var total int64

	db := r.filter(r.db.WithContext(ctx).Model(&model.Defect{}), f)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sort := f.Sort
	if sort.Column == "" {
		sort = Sort{Column: "created_at", Desc: true}
	}
	if err := f.Page.apply(applySort(withRelations(db), "defects", sort)).
		Find(&defects).Error; err != nil {
		return nil, 0, err
	}

	return defects, total, nil
}

func (r *defectRepo) filter(db *gorm.DB, f DefectFilter) *gorm.DB {
	eq := []struct{ col, val string }{
		{"project_id", f.ProjectID},
		{"stage_id", f.StageID},
		{"status", f.Status},
		{"priority", f.Priority},
		{"assigned_to", f.AssignedTo},
		{"reported_by", f.ReportedBy},
	}
	for _, c := range eq {
		if c.val != "" {
			db = db.Where(c.col+" = ?", c.val)
		}
	}
	if f.Search != "" {
		cols := []string{"title", "description", "location"}
		db = db.Where(searchClause(cols...), repeat(likePattern(f.Search), len(cols))...)
	}
	return db
}

// CountBy 按 status 或 priority 分组计数
func (r *defectRepo) CountBy(ctx context.Context, column, projectID string) (map[string]int64, error) {
	if column != "status" && column != "priority" {
		return nil, ErrInvalidSort
	}
	var rows []struct {
		Bucket string
		Count  int64
	}
	db := r.db.WithContext(ctx).Model(&model.Defect{}).
		Select(column + " AS bucket, COUNT(*) AS count")
	if projectID != "" {
		db = db.Where("project_id = ?", projectID)
	}
	if err := db.Group(column).Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Bucket] = row.Count
	}
	return out, nil
}

// CountOverdue 截止日期早于 today 且未关闭/驳回的缺陷数
func (r *defectRepo) CountOverdue(ctx context.Context, projectID string, today time.Time) (int64, error) {
	var n int64
	db := r.db.WithContext(ctx).Model(&model.Defect{}).
		Where("due_date IS NOT NULL AND due_date < ?", today.Format("2006-01-02")).
		Where("status NOT IN ?", []model.DefectStatus{model.StatusClosed, model.StatusRejected})
	if projectID != "" {
		db = db.Where("project_id = ?", projectID)
	}
	err := db.Count(&n).Error
	return n, err
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Project").
		Preload("Stage").
		Preload("Reporter").
		Preload("Assignee")
}
