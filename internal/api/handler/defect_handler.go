package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// DefectHandler 缺陷与评论 HTTP 处理器
type DefectHandler struct {
	defectSvc  service.DefectService
	commentSvc service.CommentService
}

// NewDefectHandler 创建 DefectHandler
func NewDefectHandler(defectSvc service.DefectService, commentSvc service.CommentService) *DefectHandler {
	return &DefectHandler{defectSvc: defectSvc, commentSvc: commentSvc}
}

// ────────────────────── 缺陷 ──────────────────────

// List 缺陷列表（过滤、排序、分页）
// GET /api/defects
func (h *DefectHandler) List(c *gin.Context) {
	var req dto.DefectListRequest
	if !bind(c, c.ShouldBindQuery, &req) {
		return
	}
	req.Normalize()

	defects, total, err := h.defectSvc.List(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Page(c, "defects", defects, total, req.Page, req.Limit)
}

// Get 缺陷详情
// GET /api/defects/:id
func (h *DefectHandler) Get(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	defect, err := h.defectSvc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"defect": defect})
}

// Create 登记缺陷
// POST /api/defects
func (h *DefectHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateDefectRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	defect, err := h.defectSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, gin.H{"message": "Дефект создан", "defect": defect})
}

// Update 部分更新缺陷，状态变更经流转策略校验
// PUT /api/defects/:id
func (h *DefectHandler) Update(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateDefectRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	defect, err := h.defectSvc.Update(c.Request.Context(), id, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"message": "Дефект обновлен", "defect": defect})
}

// Delete 删除缺陷及其附件文件（管理员）
// DELETE /api/defects/:id
func (h *DefectHandler) Delete(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.defectSvc.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Дефект удален")
}

// History 变更历史
// GET /api/defects/:id/history
func (h *DefectHandler) History(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	history, err := h.defectSvc.History(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"history": history})
}

// Transitions 当前用户可选的下一状态
// GET /api/defects/:id/transitions
func (h *DefectHandler) Transitions(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.defectSvc.Transitions(c.Request.Context(), id, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"current": result.Current, "allowed": result.Allowed})
}

// ────────────────────── 评论 ──────────────────────

// ListComments 缺陷评论
// GET /api/defects/:id/comments
func (h *DefectHandler) ListComments(c *gin.Context) {
	defectID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	comments, err := h.commentSvc.List(c.Request.Context(), defectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"comments": comments})
}

// CreateComment 发表评论
// POST /api/defects/:id/comments
func (h *DefectHandler) CreateComment(c *gin.Context) {
	defectID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	comment, err := h.commentSvc.Create(c.Request.Context(), defectID, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, gin.H{"comment": comment})
}

// UpdateComment 修改评论（仅作者）
// PUT /api/comments/:id
func (h *DefectHandler) UpdateComment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	comment, err := h.commentSvc.Update(c.Request.Context(), id, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"comment": comment})
}

// DeleteComment 删除评论（作者或管理员）
// DELETE /api/comments/:id
func (h *DefectHandler) DeleteComment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.commentSvc.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Комментарий удален")
}
