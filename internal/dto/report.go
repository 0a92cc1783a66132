package dto

// ── 报表模块 DTO ──

// ExportDefectsRequest 缺陷导出参数
type ExportDefectsRequest struct {
	Format    string `form:"format"    binding:"omitempty,oneof=csv excel"`
	ProjectID string `form:"projectId" binding:"omitempty,uuid"`
	Status    string `form:"status"    binding:"omitempty,oneof=новый подтвержден 'в работе' исправлен проверен закрыт отклонен"`
}

// ExportProjectRequest 项目报表导出参数
type ExportProjectRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=csv excel"`
}

// StatisticsRequest 统计参数
type StatisticsRequest struct {
	ProjectID string `form:"projectId" binding:"omitempty,uuid"`
}

// StatisticsResponse 缺陷统计
type StatisticsResponse struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByPriority map[string]int64 `json:"by_priority"`
	Overdue    int64            `json:"overdue"`
}
