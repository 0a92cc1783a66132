package dto

import "github.com/Tuns2000/Campusfix-sub000/internal/model"

// ── 项目模块 DTO ──

// ProjectListRequest 项目列表查询参数
type ProjectListRequest struct {
	PaginationRequest
	SortRequest
	Status    string `form:"status"     binding:"omitempty,oneof='планирование' 'в работе' 'приостановлен' 'завершен'"`
	Priority  string `form:"priority"   binding:"omitempty,oneof=низкий средний высокий критический"`
	ManagerID string `form:"manager_id" binding:"omitempty,uuid"`
	Search    string `form:"search"     binding:"omitempty,max=100"`
}

// CreateProjectRequest 创建项目
type CreateProjectRequest struct {
	Name        string `json:"name"        binding:"required,notblank,max=200"`
	Description string `json:"description" binding:"omitempty,max=5000"`
	Address     string `json:"address"     binding:"omitempty,max=300"`
	Status      string `json:"status"      binding:"omitempty,oneof='планирование' 'в работе' 'приостановлен' 'завершен'"`
	Priority    string `json:"priority"    binding:"omitempty,oneof=низкий средний высокий критический"`
	ManagerID   string `json:"manager_id"  binding:"omitempty,uuid"`
	StartDate   string `json:"start_date"  binding:"omitempty,isodate"`
	EndDate     string `json:"end_date"    binding:"omitempty,isodate"`
}

// UpdateProjectRequest 部分更新项目
type UpdateProjectRequest struct {
	Name        Optional[string] `json:"name"        binding:"omitnil,notblank,max=200"`
	Description Optional[string] `json:"description" binding:"omitnil,max=5000"`
	Address     Optional[string] `json:"address"     binding:"omitnil,max=300"`
	Status      Optional[string] `json:"status"      binding:"omitnil,oneof='планирование' 'в работе' 'приостановлен' 'завершен'"`
	Priority    Optional[string] `json:"priority"    binding:"omitnil,oneof=низкий средний высокий критический"`
	ManagerID   Optional[string] `json:"manager_id"  binding:"omitnil,uuid"`
	StartDate   Optional[string] `json:"start_date"  binding:"omitnil,isodate"`
	EndDate     Optional[string] `json:"end_date"    binding:"omitnil,isodate"`
}

func (r UpdateProjectRequest) NullViolations() []string {
	return nullFields(map[string]bool{
		"name":     r.Name.IsNull(),
		"status":   r.Status.IsNull(),
		"priority": r.Priority.IsNull(),
	})
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Address     string          `json:"address"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	ManagerID   *string         `json:"manager_id"`
	Manager     *UserBrief      `json:"manager"`
	StartDate   *string         `json:"start_date"`
	EndDate     *string         `json:"end_date"`
	CreatedBy   *string         `json:"created_by"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Stages      []StageResponse `json:"stages,omitempty"`
	DefectCount *int64          `json:"defect_count,omitempty"`
}

// ProjectBrief 嵌套在缺陷中的项目摘要
type ProjectBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewProjectResponse model.Project → ProjectResponse
func NewProjectResponse(p *model.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Address:     p.Address,
		Status:      string(p.Status),
		Priority:    string(p.Priority),
		ManagerID:   p.ManagerID,
		Manager:     NewUserBrief(p.Manager),
		StartDate:   FormatDate(p.StartDate),
		EndDate:     FormatDate(p.EndDate),
		CreatedBy:   p.CreatedBy,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
	for i := range p.Stages {
		resp.Stages = append(resp.Stages, NewStageResponse(&p.Stages[i]))
	}
	return resp
}

// ── 阶段 ──

// CreateStageRequest 创建阶段
type CreateStageRequest struct {
	Name        string `json:"name"        binding:"required,notblank,max=200"`
	Description string `json:"description" binding:"omitempty,max=5000"`
	Status      string `json:"status"      binding:"omitempty,oneof='не начат' 'в работе' 'завершен'"`
	StartDate   string `json:"start_date"  binding:"omitempty,isodate"`
	EndDate     string `json:"end_date"    binding:"omitempty,isodate"`
}

// UpdateStageRequest 部分更新阶段
type UpdateStageRequest struct {
	Name        Optional[string] `json:"name"        binding:"omitnil,notblank,max=200"`
	Description Optional[string] `json:"description" binding:"omitnil,max=5000"`
	Status      Optional[string] `json:"status"      binding:"omitnil,oneof='не начат' 'в работе' 'завершен'"`
	StartDate   Optional[string] `json:"start_date"  binding:"omitnil,isodate"`
	EndDate     Optional[string] `json:"end_date"    binding:"omitnil,isodate"`
}

func (r UpdateStageRequest) NullViolations() []string {
	return nullFields(map[string]bool{
		"name":   r.Name.IsNull(),
		"status": r.Status.IsNull(),
	})
}

// StageResponse 阶段响应
type StageResponse struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// NewStageResponse model.ProjectStage → StageResponse
func NewStageResponse(s *model.ProjectStage) StageResponse {
	return StageResponse{
		ID:          s.ID,
		ProjectID:   s.ProjectID,
		Name:        s.Name,
		Description: s.Description,
		Status:      string(s.Status),
		StartDate:   FormatDate(s.StartDate),
		EndDate:     FormatDate(s.EndDate),
		CreatedAt:   formatTime(s.CreatedAt),
		UpdatedAt:   formatTime(s.UpdatedAt),
	}
}
