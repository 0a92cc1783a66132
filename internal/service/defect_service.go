package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	"github.com/Tuns2000/Campusfix-sub000/internal/workflow"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
	"github.com/Tuns2000/Campusfix-sub000/pkg/storage"
)

// ── 缺陷模块业务错误 ──

var (
	ErrDefectNotFound   = pkgerrors.NotFound("Дефект не найден")
	ErrTransitionDenied = pkgerrors.Forbidden("Недопустимый переход статуса")
	ErrStageMismatch    = pkgerrors.Validation("Этап не принадлежит выбранному проекту",
		pkgerrors.FieldError{Field: "stage_id", Message: "Этап не принадлежит выбранному проекту"})
	ErrAssigneeInvalid = pkgerrors.Validation("Исполнитель должен быть активным инженером или менеджером",
		pkgerrors.FieldError{Field: "assigned_to", Message: "Недопустимый исполнитель"})
	ErrDefectProjectMissing = pkgerrors.Validation("Проект не найден",
		pkgerrors.FieldError{Field: "project_id", Message: "Проект не найден"})
	ErrDefectEditForbidden = pkgerrors.Forbidden("Недостаточно прав для изменения полей дефекта")
)

// DefectService 缺陷业务接口
type DefectService interface {
	List(ctx context.Context, req *dto.DefectListRequest) ([]dto.DefectResponse, int64, error)
	Get(ctx context.Context, id string) (*dto.DefectResponse, error)
	Create(ctx context.Context, req *dto.CreateDefectRequest, actor Actor) (*dto.DefectResponse, error)
	// Update 部分更新，状态变更经流转策略校验，每个变更字段写一条历史
	Update(ctx context.Context, id string, req *dto.UpdateDefectRequest, actor Actor) (*dto.DefectResponse, error)
	Delete(ctx context.Context, id string, actor Actor) error
	History(ctx context.Context, id string) ([]dto.HistoryResponse, error)
	Transitions(ctx context.Context, id string, actor Actor) (*dto.TransitionsResponse, error)
}

type defectService struct {
	repo   *repository.Repository
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

// NewDefectService 创建 DefectService 实例
func NewDefectService(repo *repository.Repository, store storage.Storage, logger *zap.Logger) DefectService {
	return &defectService{repo: repo, store: store, logger: logger, now: time.Now}
}

// ────────────────────── List ──────────────────────

func (s *defectService) List(ctx context.Context, req *dto.DefectListRequest) ([]dto.DefectResponse, int64, error) {
	req.Normalize()
	sort, err := repository.ResolveSort(repository.DefectSortColumns, "created_at", req.SortBy, req.SortOrder)
	if err != nil {
		return nil, 0, ErrInvalidSort
	}

	items, total, err := s.repo.Defect.List(ctx, repository.DefectFilter{
		ProjectID:  req.ProjectID,
		StageID:    req.StageID,
		Status:     req.Status,
		Priority:   req.Priority,
		AssignedTo: req.AssignedTo,
		ReportedBy: req.ReportedBy,
		Search:     req.Search,
		Sort:       sort,
		Page:       repository.Page{Offset: req.Offset(), Limit: req.Limit},
	})
	if err != nil {
		s.logger.Error("查询缺陷列表失败", zap.Error(err))
		return nil, 0, err
	}
	return dto.NewDefectList(items), total, nil
}

// ────────────────────── Get ──────────────────────

func (s *defectService) Get(ctx context.Context, id string) (*dto.DefectResponse, error) {
	d, err := s.repo.Defect.GetDetail(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}
	resp := dto.NewDefectResponse(d)
	return &resp, nil
}

// ────────────────────── Create ──────────────────────

func (s *defectService) Create(ctx context.Context, req *dto.CreateDefectRequest, actor Actor) (*dto.DefectResponse, error) {
	due, err := dto.ParseDate(req.DueDate)
	if err != nil {
		return nil, pkgerrors.Validation("Некорректная дата", pkgerrors.FieldError{Field: "due_date", Message: "Дата должна быть в формате YYYY-MM-DD"})
	}

	d := &model.Defect{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		ProjectID:   req.ProjectID,
		StageID:     emptyToNil(req.StageID),
		Status:      model.StatusNew,
		Priority:    model.Priority(req.Priority),
		ReportedBy:  actor.UserID,
		AssignedTo:  emptyToNil(req.AssignedTo),
		DueDate:     due,
	}
	if d.Priority == "" {
		d.Priority = model.PriorityMedium
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := checkReferences(ctx, tx, d.ProjectID, d.StageID, d.AssignedTo); err != nil {
			return err
		}
		if err := tx.Defect.Create(ctx, d); err != nil {
			return err
		}
		return tx.History.Append(ctx, []model.DefectHistory{{
			DefectID:  d.ID,
			FieldName: model.HistoryFieldCreated,
			NewValue:  strPtr(d.Title),
			ChangedBy: actor.UserID,
		}})
	})
	if err != nil {
		if !isAppError(err) {
			s.logger.Error("创建缺陷失败", zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("缺陷已创建",
		zap.String("defect_id", d.ID),
		zap.String("project_id", d.ProjectID),
		zap.String("operator", actor.UserID),
	)
	return s.Get(ctx, d.ID)
}

// ────────────────────── Update ──────────────────────

func (s *defectService) Update(ctx context.Context, id string, req *dto.UpdateDefectRequest, actor Actor) (*dto.DefectResponse, error) {
	var changed int
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		cur, err := tx.Defect.GetByID(ctx, id)
		if err != nil {
			return notFound(err, ErrDefectNotFound)
		}

		diff := newDefectDiff()
		if v, ok := req.Title.Get(); ok {
			diff.set("title", cur.Title, strings.TrimSpace(v))
		}
		if req.Description.Set {
			v, _ := req.Description.Get()
			diff.set("description", cur.Description, v)
		}
		if req.Location.Set {
			v, _ := req.Location.Get()
			diff.set("location", cur.Location, v)
		}
		if v, ok := req.ProjectID.Get(); ok {
			diff.set("project_id", cur.ProjectID, v)
		}
		if req.StageID.Set {
			diff.setNullable("stage_id", cur.StageID, req.StageID.Value)
		}
		if v, ok := req.Priority.Get(); ok {
			diff.set("priority", string(cur.Priority), v)
		}
		if req.AssignedTo.Set {
			diff.setNullable("assigned_to", cur.AssignedTo, req.AssignedTo.Value)
		}
		if req.DueDate.Set {
			newDue, err := dto.ParseDate(derefOr(req.DueDate.Value, ""))
			if err != nil {
				return pkgerrors.Validation("Некорректная дата", pkgerrors.FieldError{Field: "due_date", Message: "Дата должна быть в формате YYYY-MM-DD"})
			}
			diff.setDate("due_date", cur.DueDate, newDue)
		}

		// 除状态外的字段只有 admin / manager / engineer 可以修改
		if diff.len() > 0 && !actor.HasRole(model.RoleAdmin, model.RoleManager, model.RoleEngineer) {
			return ErrDefectEditForbidden
		}

		if v, ok := req.Status.Get(); ok && model.DefectStatus(v) != cur.Status {
			to := model.DefectStatus(v)
			if !workflow.CanTransition(actor.Role, cur.Status, to) {
				return ErrTransitionDenied.Withf("Переход из статуса «%s» в статус «%s» запрещен для вашей роли", cur.Status, to)
			}
			diff.set("status", string(cur.Status), v)
			diff.fields["closed_at"] = workflow.ApplyClosure(cur.Status, to, s.now().UTC(), cur.ClosedAt)
		}

		if diff.len() == 0 {
			return nil
		}

		if diff.touches("project_id", "stage_id", "assigned_to") {
			projectID := cur.ProjectID
			if v, ok := diff.fields["project_id"].(string); ok {
				projectID = v
			}
			stageID := cur.StageID
			if v, ok := diff.fields["stage_id"]; ok {
				stageID = v.(*string)
			}
			var assignee *string
			if v, ok := diff.fields["assigned_to"]; ok {
				assignee = v.(*string)
			}
			if err := checkReferences(ctx, tx, projectID, stageID, assignee); err != nil {
				return err
			}
		}

		if err := tx.Defect.Updates(ctx, id, diff.fields); err != nil {
			return notFound(err, ErrDefectNotFound)
		}
		changed = len(diff.history)
		return tx.History.Append(ctx, diff.entries(id, actor.UserID))
	})
	if err != nil {
		if !isAppError(err) {
			s.logger.Error("更新缺陷失败", zap.String("defect_id", id), zap.Error(err))
		}
		return nil, err
	}

	if changed > 0 {
		s.logger.Info("缺陷已更新",
			zap.String("defect_id", id),
			zap.Int("changed_fields", changed),
			zap.String("operator", actor.UserID),
		)
	}
	return s.Get(ctx, id)
}

// ────────────────────── Delete ──────────────────────

func (s *defectService) Delete(ctx context.Context, id string, actor Actor) error {
	var files []model.Attachment
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var err error
		if files, err = tx.Attachment.ListByDefect(ctx, id); err != nil {
			return err
		}
		return tx.Defect.Delete(ctx, id)
	})
	if err != nil {
		return notFound(err, ErrDefectNotFound)
	}

	// 事务提交后再删除文件；失败只记录日志，由附件对账任务兜底
	for _, a := range files {
		if err := s.store.Remove(ctx, a.FilePath); err != nil {
			s.logger.Warn("删除附件文件失败", zap.String("path", a.FilePath), zap.Error(err))
		}
	}

	s.logger.Info("缺陷已删除",
		zap.String("defect_id", id),
		zap.Int("attachments", len(files)),
		zap.String("operator", actor.UserID),
	)
	return nil
}

// ────────────────────── History / Transitions ──────────────────────

func (s *defectService) History(ctx context.Context, id string) ([]dto.HistoryResponse, error) {
	if _, err := s.repo.Defect.GetByID(ctx, id); err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}
	items, err := s.repo.History.ListByDefect(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewHistoryList(items), nil
}

func (s *defectService) Transitions(ctx context.Context, id string, actor Actor) (*dto.TransitionsResponse, error) {
	d, err := s.repo.Defect.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}
	allowed := workflow.AllowedTransitions(actor.Role, d.Status)
	out := make([]string, 0, len(allowed))
	for _, st := range allowed {
		out = append(out, string(st))
	}
	return &dto.TransitionsResponse{Current: string(d.Status), Allowed: out}, nil
}

// checkReferences 校验项目存在、阶段属于项目、负责人有效
func checkReferences(ctx context.Context, tx *repository.Repository, projectID string, stageID, assignee *string) error {
	ok, err := tx.Project.Exists(ctx, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDefectProjectMissing
	}
	if stageID != nil {
		stage, err := tx.Stage.GetByID(ctx, *stageID)
		if err != nil {
			return notFound(err, ErrStageMismatch)
		}
		if stage.ProjectID != projectID {
			return ErrStageMismatch
		}
	}
	if assignee != nil {
		if err := activeAssignee(ctx, tx, *assignee); err != nil {
			return err
		}
	}
	return nil
}

// ── 字段差异 ──

type fieldChange struct {
	field    string
	old, new *string
}

type defectDiff struct {
	fields  map[string]interface{}
	history []fieldChange
}

func newDefectDiff() *defectDiff {
	return &defectDiff{fields: map[string]interface{}{}}
}

func (d *defectDiff) len() int { return len(d.history) }

func (d *defectDiff) touches(names ...string) bool {
	for _, n := range names {
		if _, ok := d.fields[n]; ok {
			return true
		}
	}
	return false
}

func (d *defectDiff) set(field, old, new string) {
	if old == new {
		return
	}
	d.fields[field] = new
	d.history = append(d.history, fieldChange{field: field, old: strPtr(old), new: strPtr(new)})
}

func (d *defectDiff) setNullable(field string, old, new *string) {
	if new != nil && *new == "" {
		new = nil
	}
	if derefOr(old, "") == derefOr(new, "") && (old == nil) == (new == nil) {
		return
	}
	d.fields[field] = new
	d.history = append(d.history, fieldChange{field: field, old: old, new: new})
}

func (d *defectDiff) setDate(field string, old, new *datatypes.Date) {
	oldS, newS := dto.FormatDate(old), dto.FormatDate(new)
	if derefOr(oldS, "") == derefOr(newS, "") {
		return
	}
	d.fields[field] = new
	d.history = append(d.history, fieldChange{field: field, old: oldS, new: newS})
}

func (d *defectDiff) entries(defectID, actorID string) []model.DefectHistory {
	out := make([]model.DefectHistory, 0, len(d.history))
	for _, c := range d.history {
		out = append(out, model.DefectHistory{
			DefectID:  defectID,
			FieldName: c.field,
			OldValue:  c.old,
			NewValue:  c.new,
			ChangedBy: actorID,
		})
	}
	return out
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
