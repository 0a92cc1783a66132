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

var (
	ErrCommentNotFound  = pkgerrors.NotFound("Комментарий не найден")
	ErrCommentForbidden = pkgerrors.Forbidden("Изменять комментарий может только его автор")
	ErrCommentEmpty     = pkgerrors.Validation("Текст комментария не может быть пустым",
		pkgerrors.FieldError{Field: "text", Message: "Текст комментария не может быть пустым"})
)

// CommentService 缺陷评论业务接口
type CommentService interface {
	List(ctx context.Context, defectID string) ([]dto.CommentResponse, error)
	Create(ctx context.Context, defectID string, req *dto.CommentRequest, actor Actor) (*dto.CommentResponse, error)
	// Update 仅作者本人
	Update(ctx context.Context, id string, req *dto.CommentRequest, actor Actor) (*dto.CommentResponse, error)
	// Delete 作者本人或管理员
	Delete(ctx context.Context, id string, actor Actor) error
}

type commentService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCommentService 创建 CommentService 实例
func NewCommentService(repo *repository.Repository, logger *zap.Logger) CommentService {
	return &commentService{repo: repo, logger: logger}
}

func (s *commentService) List(ctx context.Context, defectID string) ([]dto.CommentResponse, error) {
	if _, err := s.repo.Defect.GetByID(ctx, defectID); err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}
	items, err := s.repo.Comment.ListByDefect(ctx, defectID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CommentResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.NewCommentResponse(&items[i]))
	}
	return out, nil
}

func (s *commentService) Create(ctx context.Context, defectID string, req *dto.CommentRequest, actor Actor) (*dto.CommentResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrCommentEmpty
	}
	if _, err := s.repo.Defect.GetByID(ctx, defectID); err != nil {
		return nil, notFound(err, ErrDefectNotFound)
	}

	c := &model.Comment{DefectID: defectID, AuthorID: actor.UserID, Text: text}
	if err := s.repo.Comment.Create(ctx, c); err != nil {
		s.logger.Error("创建评论失败", zap.String("defect_id", defectID), zap.Error(err))
		return nil, err
	}
	return s.get(ctx, c.ID)
}

func (s *commentService) Update(ctx context.Context, id string, req *dto.CommentRequest, actor Actor) (*dto.CommentResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrCommentEmpty
	}
	c, err := s.repo.Comment.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCommentNotFound)
	}
	if c.AuthorID != actor.UserID {
		return nil, ErrCommentForbidden
	}
	if err := s.repo.Comment.UpdateText(ctx, id, text); err != nil {
		return nil, notFound(err, ErrCommentNotFound)
	}
	return s.get(ctx, id)
}

func (s *commentService) Delete(ctx context.Context, id string, actor Actor) error {
	c, err := s.repo.Comment.GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrCommentNotFound)
	}
	if c.AuthorID != actor.UserID && !actor.IsAdmin() {
		return ErrCommentForbidden.Withf("Удалить комментарий может только автор или администратор")
	}
	if err := s.repo.Comment.Delete(ctx, id); err != nil {
		return notFound(err, ErrCommentNotFound)
	}

	s.logger.Info("评论已删除", zap.String("comment_id", id), zap.String("operator", actor.UserID))
	return nil
}

func (s *commentService) get(ctx context.Context, id string) (*dto.CommentResponse, error) {
	c, err := s.repo.Comment.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrCommentNotFound)
	}
	resp := dto.NewCommentResponse(c)
	return &resp, nil
}
