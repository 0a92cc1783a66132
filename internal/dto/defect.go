package dto

import "github.com/Tuns2000/Campusfix-sub000/internal/model"

// ── 缺陷模块 DTO ──

// DefectListRequest 缺陷列表查询参数
type DefectListRequest struct {
	PaginationRequest
	SortRequest
	ProjectID  string `form:"project_id"  binding:"omitempty,uuid"`
	StageID    string `form:"stage_id"    binding:"omitempty,uuid"`
	Status     string `form:"status"      binding:"omitempty,oneof=новый подтвержден 'в работе' исправлен проверен закрыт отклонен"`
	Priority   string `form:"priority"    binding:"omitempty,oneof=низкий средний высокий критический"`
	AssignedTo string `form:"assigned_to" binding:"omitempty,uuid"`
	ReportedBy string `form:"reported_by" binding:"omitempty,uuid"`
	Search     string `form:"search"      binding:"omitempty,max=100"`
}

// CreateDefectRequest 创建缺陷，状态固定为 новый
type CreateDefectRequest struct {
	Title       string `json:"title"       binding:"required,textmin=3,max=200"`
	Description string `json:"description" binding:"omitempty,max=5000"`
	Location    string `json:"location"    binding:"omitempty,max=300"`
	ProjectID   string `json:"project_id"  binding:"required,uuid"`
	StageID     string `json:"stage_id"    binding:"omitempty,uuid"`
	Priority    string `json:"priority"    binding:"omitempty,oneof=низкий средний высокий критический"`
	AssignedTo  string `json:"assigned_to" binding:"omitempty,uuid"`
	DueDate     string `json:"due_date"    binding:"omitempty,isodate"`
}

// UpdateDefectRequest 部分更新缺陷
// stage_id / assigned_to / due_date 可显式置 null 以清空
type UpdateDefectRequest struct {
	Title       Optional[string] `json:"title"       binding:"omitnil,textmin=3,max=200"`
	Description Optional[string] `json:"description" binding:"omitnil,max=5000"`
	Location    Optional[string] `json:"location"    binding:"omitnil,max=300"`
	ProjectID   Optional[string] `json:"project_id"  binding:"omitnil,uuid"`
	StageID     Optional[string] `json:"stage_id"    binding:"omitnil,uuid"`
	Status      Optional[string] `json:"status"      binding:"omitnil,oneof=новый подтвержден 'в работе' исправлен проверен закрыт отклонен"`
	Priority    Optional[string] `json:"priority"    binding:"omitnil,oneof=низкий средний высокий критический"`
	AssignedTo  Optional[string] `json:"assigned_to" binding:"omitnil,uuid"`
	DueDate     Optional[string] `json:"due_date"    binding:"omitnil,isodate"`
}

func (r UpdateDefectRequest) NullViolations() []string {
	return nullFields(map[string]bool{
		"title":      r.Title.IsNull(),
		"project_id": r.ProjectID.IsNull(),
		"status":     r.Status.IsNull(),
		"priority":   r.Priority.IsNull(),
	})
}

// DefectResponse 缺陷响应，键集合固定
type DefectResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	ProjectID   string        `json:"project_id"`
	StageID     *string       `json:"stage_id"`
	Status      string        `json:"status"`
	Priority    string        `json:"priority"`
	ReportedBy  string        `json:"reported_by"`
	AssignedTo  *string       `json:"assigned_to"`
	DueDate     *string       `json:"due_date"`
	ClosedAt    *string       `json:"closed_at"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
	Project     *ProjectBrief `json:"project"`
	Stage       *StageBrief   `json:"stage"`
	Reporter    *UserBrief    `json:"reporter"`
	Assignee    *UserBrief    `json:"assignee"`
}

// StageBrief 嵌套在缺陷中的阶段摘要
type StageBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewDefectResponse model.Defect → DefectResponse
func NewDefectResponse(d *model.Defect) DefectResponse {
	resp := DefectResponse{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		ProjectID:   d.ProjectID,
		StageID:     d.StageID,
		Status:      string(d.Status),
		Priority:    string(d.Priority),
		ReportedBy:  d.ReportedBy,
		AssignedTo:  d.AssignedTo,
		DueDate:     FormatDate(d.DueDate),
		ClosedAt:    formatTimePtr(d.ClosedAt),
		CreatedAt:   formatTime(d.CreatedAt),
		UpdatedAt:   formatTime(d.UpdatedAt),
		Reporter:    NewUserBrief(d.Reporter),
		Assignee:    NewUserBrief(d.Assignee),
	}
	if d.Project != nil {
		resp.Project = &ProjectBrief{ID: d.Project.ID, Name: d.Project.Name}
	}
	if d.Stage != nil {
		resp.Stage = &StageBrief{ID: d.Stage.ID, Name: d.Stage.Name}
	}
	return resp
}

// NewDefectList 批量转换
func NewDefectList(items []model.Defect) []DefectResponse {
	out := make([]DefectResponse, 0, len(items))
	for i := range items {
		out = append(out, NewDefectResponse(&items[i]))
	}
	return out
}

// TransitionsResponse 当前用户可选的状态流转
type TransitionsResponse struct {
	Current string   `json:"current"`
	Allowed []string `json:"allowed"`
}

// HistoryResponse 变更历史
type HistoryResponse struct {
	ID        string     `json:"id"`
	FieldName string     `json:"field_name"`
	OldValue  *string    `json:"old_value"`
	NewValue  *string    `json:"new_value"`
	ChangedBy string     `json:"changed_by"`
	Changer   *UserBrief `json:"changer"`
	CreatedAt string     `json:"created_at"`
}

// NewHistoryList 批量转换
func NewHistoryList(items []model.DefectHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(items))
	for _, h := range items {
		out = append(out, HistoryResponse{
			ID:        h.ID,
			FieldName: h.FieldName,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			ChangedBy: h.ChangedBy,
			Changer:   NewUserBrief(h.Changer),
			CreatedAt: formatTime(h.CreatedAt),
		})
	}
	return out
}

// ── 评论 ──

// CommentRequest 新建/修改评论
type CommentRequest struct {
	Text string `json:"text" binding:"required,notblank,max=5000"`
}

// CommentResponse 评论响应
type CommentResponse struct {
	ID        string     `json:"id"`
	DefectID  string     `json:"defect_id"`
	AuthorID  string     `json:"author_id"`
	Author    *UserBrief `json:"author"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

// NewCommentResponse model.Comment → CommentResponse
func NewCommentResponse(c *model.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		DefectID:  c.DefectID,
		AuthorID:  c.AuthorID,
		Author:    NewUserBrief(c.Author),
		Text:      c.Text,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

// ── 附件 ──

// AttachmentResponse 附件元数据响应
type AttachmentResponse struct {
	ID         string `json:"id"`
	DefectID   string `json:"defect_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	UploadedBy string `json:"uploaded_by"`
	CreatedAt  string `json:"created_at"`
}

// NewAttachmentList 批量转换
func NewAttachmentList(items []model.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AttachmentResponse{
			ID:         a.ID,
			DefectID:   a.DefectID,
			FileName:   a.FileName,
			FileType:   a.FileType,
			FileSize:   a.FileSize,
			UploadedBy: a.UploadedBy,
			CreatedAt:  formatTime(a.CreatedAt),
		})
	}
	return out
}
