package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
)

// ── 项目模块业务错误 ──

var (
	ErrProjectNotFound   = pkgerrors.NotFound("Проект не найден")
	ErrProjectHasDefects = pkgerrors.Validation("Нельзя удалить проект, к которому привязаны дефекты")
	ErrManagerInvalid    = pkgerrors.Validation("Руководитель должен быть активным пользователем с ролью manager или admin",
		pkgerrors.FieldError{Field: "manager_id", Message: "Недопустимый руководитель"})
	ErrDateRange = pkgerrors.Validation("Дата окончания не может быть раньше даты начала",
		pkgerrors.FieldError{Field: "end_date", Message: "Дата окончания не может быть раньше даты начала"})
	ErrInvalidSort = pkgerrors.Validation("Недопустимое поле сортировки",
		pkgerrors.FieldError{Field: "sortBy", Message: "Недопустимое поле сортировки"})
)

// ProjectService 项目业务接口
type ProjectService interface {
	List(ctx context.Context, req *dto.ProjectListRequest) ([]dto.ProjectResponse, int64, error)
	Get(ctx context.Context, id string) (*dto.ProjectResponse, error)
	Create(ctx context.Context, req *dto.CreateProjectRequest, actor Actor) (*dto.ProjectResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateProjectRequest, actor Actor) (*dto.ProjectResponse, error)
	Delete(ctx context.Context, id string, actor Actor) error
}

type projectService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewProjectService 创建 ProjectService 实例
func NewProjectService(repo *repository.Repository, logger *zap.Logger) ProjectService {
	return &projectService{repo: repo, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *projectService) List(ctx context.Context, req *dto.ProjectListRequest) ([]dto.ProjectResponse, int64, error) {
	req.Normalize()
	sort, err := repository.ResolveSort(repository.ProjectSortColumns, "created_at", req.SortBy, req.SortOrder)
	if err != nil {
		return nil, 0, ErrInvalidSort
	}

	projects, total, err := s.repo.Project.List(ctx, repository.ProjectFilter{
		Status:    req.Status,
		Priority:  req.Priority,
		ManagerID: req.ManagerID,
		Search:    req.Search,
		Sort:      sort,
		Page:      repository.Page{Offset: req.Offset(), Limit: req.Limit},
	})
	if err != nil {
		s.logger.Error("查询项目列表失败", zap.Error(err))
		return nil, 0, err
	}

	// 批量查询缺陷数，避免 N+1
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	counts, err := s.repo.Project.CountDefectsByProject(ctx, ids)
	if err != nil {
		s.logger.Warn("批量查询缺陷数失败，回退为0", zap.Error(err))
		counts = map[string]int64{}
	}

	result := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		resp := dto.NewProjectResponse(&projects[i])
		n := counts[projects[i].ID]
		resp.DefectCount = &n
		result = append(result, resp)
	}
	return result, total, nil
}

// ────────────────────── Get ──────────────────────

func (s *projectService) Get(ctx context.Context, id string) (*dto.ProjectResponse, error) {
	p, err := s.repo.Project.GetWithStages(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}
	n, err := s.repo.Project.CountDefects(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewProjectResponse(p)
	resp.DefectCount = &n
	return &resp, nil
}

// ────────────────────── Create ──────────────────────

func (s *projectService) Create(ctx context.Context, req *dto.CreateProjectRequest, actor Actor) (*dto.ProjectResponse, error) {
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if req.ManagerID != "" {
		if err := s.checkManager(ctx, req.ManagerID); err != nil {
			return nil, err
		}
	}

	p := &model.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Address:     req.Address,
		Status:      model.ProjectStatus(req.Status),
		Priority:    model.Priority(req.Priority),
		ManagerID:   emptyToNil(req.ManagerID),
		StartDate:   start,
		EndDate:     end,
		CreatedBy:   strPtr(actor.UserID),
	}
	if p.Status == "" {
		p.Status = model.ProjectPlanning
	}
	if p.Priority == "" {
		p.Priority = model.PriorityMedium
	}

	if err := s.repo.Project.Create(ctx, p); err != nil {
		s.logger.Error("创建项目失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("项目已创建", zap.String("project_id", p.ID), zap.String("operator", actor.UserID))
	return s.Get(ctx, p.ID)
}

// ────────────────────── Update ──────────────────────

func (s *projectService) Update(ctx context.Context, id string, req *dto.UpdateProjectRequest, actor Actor) (*dto.ProjectResponse, error) {
	p, err := s.repo.Project.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProjectNotFound)
	}

	fields := map[string]interface{}{}
	if v, ok := req.Name.Get(); ok {
		fields["name"] = strings.TrimSpace(v)
	}
	if req.Description.Set {
		v, _ := req.Description.Get()
		fields["description"] = v
	}
	if req.Address.Set {
		v, _ := req.Address.Get()
		fields["address"] = v
	}
	if v, ok := req.Status.Get(); ok {
		fields["status"] = v
	}
	if v, ok := req.Priority.Get(); ok {
		fields["priority"] = v
	}
	if req.ManagerID.Set {
		v, ok := req.ManagerID.Get()
		if ok && v != "" {
			if err := s.checkManager(ctx, v); err != nil {
				return nil, err
			}
		}
		fields["manager_id"] = emptyToNil(v)
	}

	start, end, err := mergeDateRange(p.StartDate, p.EndDate, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if req.StartDate.Set {
		fields["start_date"] = start
	}
	if req.EndDate.Set {
		fields["end_date"] = end
	}

	if len(fields) > 0 {
		if err := s.repo.Project.Updates(ctx, id, fields); err != nil {
			s.logger.Error("更新项目失败", zap.String("project_id", id), zap.Error(err))
			return nil, notFound(err, ErrProjectNotFound)
		}
		s.logger.Info("项目已更新", zap.String("project_id", id), zap.String("operator", actor.UserID))
	}
	return s.Get(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *projectService) Delete(ctx context.Context, id string, actor Actor) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if ok, err := tx.Project.Exists(ctx, id); err != nil {
			return err
		} else if !ok {
			return ErrProjectNotFound
		}

		n, err := tx.Project.CountDefects(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrProjectHasDefects.Withf("Нельзя удалить проект: к нему привязано дефектов: %d", n)
		}
		return tx.Project.Delete(ctx, id)
	})
	if err != nil {
		return notFound(err, ErrProjectNotFound)
	}

	s.logger.Info("项目已删除", zap.String("project_id", id), zap.String("operator", actor.UserID))
	return nil
}

func (s *projectService) checkManager(ctx context.Context, id string) error {
	u, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrManagerInvalid)
	}
	if !u.IsActive || (u.Role != model.RoleManager && u.Role != model.RoleAdmin) {
		return ErrManagerInvalid
	}
	return nil
}

// ── 日期区间 ──

func parseDateRange(startStr, endStr string) (*datatypes.Date, *datatypes.Date, error) {
	start, err := dto.ParseDate(startStr)
	if err != nil {
		return nil, nil, pkgerrors.Validation("Некорректная дата", pkgerrors.FieldError{Field: "start_date", Message: "Дата должна быть в формате YYYY-MM-DD"})
	}
	end, err := dto.ParseDate(endStr)
	if err != nil {
		return nil, nil, pkgerrors.Validation("Некорректная дата", pkgerrors.FieldError{Field: "end_date", Message: "Дата должна быть в формате YYYY-MM-DD"})
	}
	if start != nil && end != nil && time.Time(*end).Before(time.Time(*start)) {
		return nil, nil, ErrDateRange
	}
	return start, end, nil
}

// mergeDateRange 部分更新时与已存储的日期合并后再校验先后顺序
func mergeDateRange(curStart, curEnd *datatypes.Date, reqStart, reqEnd dto.Optional[string]) (*datatypes.Date, *datatypes.Date, error) {
	startStr, endStr := "", ""
	if reqStart.Set {
		startStr, _ = reqStart.Get()
	} else if curStart != nil {
		startStr = *dto.FormatDate(curStart)
	}
	if reqEnd.Set {
		endStr, _ = reqEnd.Get()
	} else if curEnd != nil {
		endStr = *dto.FormatDate(curEnd)
	}
	return parseDateRange(startStr, endStr)
}

// isAppError 判断是否为可直接返回客户端的业务错误
func isAppError(err error) bool {
	var appErr *pkgerrors.AppError
	return errors.As(err, &appErr)
}
