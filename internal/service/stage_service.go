package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/model"
	"github.com/Tuns2000/Campusfix-sub000/internal/repository"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
)

// ── 阶段模块业务错误 ──

var (
	ErrStageNotFound   = pkgerrors.NotFound("Этап не найден")
	ErrStageHasDefects = pkgerrors.Validation("Нельзя удалить этап, к которому привязаны дефекты")
)

// StageService 项目阶段业务接口
type StageService interface {
	List(ctx context.Context, projectID string) ([]dto.StageResponse, error)
	Create(ctx context.Context, projectID string, req *dto.CreateStageRequest, actor Actor) (*dto.StageResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateStageRequest, actor Actor) (*dto.StageResponse, error)
	Delete(ctx context.Context, id string, actor Actor) error
}

type stageService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewStageService 创建 StageService 实例
func NewStageService(repo *repository.Repository, logger *zap.Logger) StageService {
	return &stageService{repo: repo, logger: logger}
}

func (s *stageService) List(ctx context.Context, projectID string) ([]dto.StageResponse, error) {
	if ok, err := s.repo.Project.Exists(ctx, projectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrProjectNotFound
	}

	stages, err := s.repo.Stage.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("查询阶段列表失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.StageResponse, 0, len(stages))
	for i := range stages {
		result = append(result, dto.NewStageResponse(&stages[i]))
	}
	return result, nil
}

func (s *stageService) Create(ctx context.Context, projectID string, req *dto.CreateStageRequest, actor Actor) (*dto.StageResponse, error) {
	if ok, err := s.repo.Project.Exists(ctx, projectID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrProjectNotFound
	}

	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	stage := &model.ProjectStage{
		ProjectID:   projectID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      model.StageStatus(req.Status),
		StartDate:   start,
		EndDate:     end,
	}
	if stage.Status == "" {
		stage.Status = model.StageNotStarted
	}

	if err := s.repo.Stage.Create(ctx, stage); err != nil {
		s.logger.Error("创建阶段失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("阶段已创建",
		zap.String("stage_id", stage.ID),
		zap.String("project_id", projectID),
		zap.String("operator", actor.UserID),
	)
	resp := dto.NewStageResponse(stage)
	return &resp, nil
}

func (s *stageService) Update(ctx context.Context, id string, req *dto.UpdateStageRequest, actor Actor) (*dto.StageResponse, error) {
	stage, err := s.repo.Stage.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrStageNotFound)
	}

	fields := map[string]interface{}{}
	if v, ok := req.Name.Get(); ok {
		fields["name"] = strings.TrimSpace(v)
	}
	if req.Description.Set {
		v, _ := req.Description.Get()
		fields["description"] = v
	}
	if v, ok := req.Status.Get(); ok {
		fields["status"] = v
	}

	start, end, err := mergeDateRange(stage.StartDate, stage.EndDate, req.StartDate, req.EndDate)
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
		if err := s.repo.Stage.Updates(ctx, id, fields); err != nil {
			return nil, notFound(err, ErrStageNotFound)
		}
		s.logger.Info("阶段已更新", zap.String("stage_id", id), zap.String("operator", actor.UserID))
	}

	updated, err := s.repo.Stage.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrStageNotFound)
	}
	resp := dto.NewStageResponse(updated)
	return &resp, nil
}

func (s *stageService) Delete(ctx context.Context, id string, actor Actor) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Stage.GetByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.Stage.CountDefects(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrStageHasDefects.Withf("Нельзя удалить этап: к нему привязано дефектов: %d", n)
		}
		return tx.Stage.Delete(ctx, id)
	})
	if err != nil {
		return notFound(err, ErrStageNotFound)
	}

	s.logger.Info("阶段已删除", zap.String("stage_id", id), zap.String("operator", actor.UserID))
	return nil
}
