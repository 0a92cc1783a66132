package handler

import "github.com/Tuns2000/Campusfix-sub000/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Project    *ProjectHandler
	Defect     *DefectHandler
	Attachment *AttachmentHandler
	Report     *ReportHandler
	Health     *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, db HealthChecker) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User),
		Project:    NewProjectHandler(svc.Project, svc.Stage),
		Defect:     NewDefectHandler(svc.Defect, svc.Comment),
		Attachment: NewAttachmentHandler(svc.Attachment),
		Report:     NewReportHandler(svc.Report),
		Health:     NewHealthHandler(db),
	}
}
