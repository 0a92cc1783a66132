package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// ProjectHandler 项目与阶段 HTTP 处理器
type ProjectHandler struct {
	projectSvc service.ProjectService
	stageSvc   service.StageService
}

// NewProjectHandler 创建 ProjectHandler
func NewProjectHandler(projectSvc service.ProjectService, stageSvc service.StageService) *ProjectHandler {
	return &ProjectHandler{projectSvc: projectSvc, stageSvc: stageSvc}
}

// ────────────────────── 项目 ──────────────────────

// List 项目列表
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req dto.ProjectListRequest
	if !bind(c, c.ShouldBindQuery, &req) {
		return
	}
	req.Normalize()

	projects, total, err := h.projectSvc.List(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Page(c, "projects", projects, total, req.Page, req.Limit)
}

// Get 项目详情（含阶段与缺陷数）
// GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectSvc.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"project": project})
}

// Create 创建项目
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	project, err := h.projectSvc.Create(c.Request.Context(), &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, gin.H{"message": "Проект создан", "project": project})
}

// Update 部分更新项目
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	project, err := h.projectSvc.Update(c.Request.Context(), id, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"message": "Проект обновлен", "project": project})
}

// Delete 删除项目，存在缺陷时拒绝
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.projectSvc.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Проект удален")
}

// ────────────────────── 阶段 ──────────────────────

// ListStages 项目下的阶段
// GET /api/projects/:id/stages
func (h *ProjectHandler) ListStages(c *gin.Context) {
	projectID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	stages, err := h.stageSvc.List(c.Request.Context(), projectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"stages": stages})
}

// CreateStage 创建阶段
// POST /api/projects/:id/stages
func (h *ProjectHandler) CreateStage(c *gin.Context) {
	projectID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateStageRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	stage, err := h.stageSvc.Create(c.Request.Context(), projectID, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, gin.H{"message": "Этап создан", "stage": stage})
}

// UpdateStage 部分更新阶段
// PUT /api/stages/:id
func (h *ProjectHandler) UpdateStage(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateStageRequest
	if !bind(c, c.ShouldBindJSON, &req) {
		return
	}

	stage, err := h.stageSvc.Update(c.Request.Context(), id, &req, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"message": "Этап обновлен", "stage": stage})
}

// DeleteStage 删除阶段，存在缺陷时拒绝
// DELETE /api/stages/:id
func (h *ProjectHandler) DeleteStage(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.stageSvc.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Этап удален")
}
