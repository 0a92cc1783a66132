package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tuns2000/Campusfix-sub000/internal/dto"
	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// ReportHandler 报表导出与统计 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc}
}

// ExportDefects 导出缺陷清单
// GET /api/reports/export/defects?format=csv|excel&projectId=&status=
func (h *ReportHandler) ExportDefects(c *gin.Context) {
	var req dto.ExportDefectsRequest
	if !bind(c, c.ShouldBindQuery, &req) {
		return
	}

	file, err := h.reportSvc.ExportDefects(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sendFile(c, file)
}

// ExportProject 导出项目报表（汇总、阶段、缺陷）
// GET /api/reports/export/project/:projectId?format=csv|excel
func (h *ReportHandler) ExportProject(c *gin.Context) {
	projectID, ok := ParamID(c, "projectId")
	if !ok {
		return
	}

	var req dto.ExportProjectRequest
	if !bind(c, c.ShouldBindQuery, &req) {
		return
	}

	file, err := h.reportSvc.ExportProject(c.Request.Context(), projectID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	sendFile(c, file)
}

// Statistics 缺陷统计
// GET /api/reports/statistics?projectId=
func (h *ReportHandler) Statistics(c *gin.Context) {
	var req dto.StatisticsRequest
	if !bind(c, c.ShouldBindQuery, &req) {
		return
	}

	stats, err := h.reportSvc.Statistics(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"statistics": stats})
}

func sendFile(c *gin.Context, file *service.ExportFile) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", contentDisposition("attachment", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Data.Bytes())
}
