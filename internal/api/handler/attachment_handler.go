package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tuns2000/Campusfix-sub000/internal/service"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

// AttachmentHandler 附件 HTTP 处理器
type AttachmentHandler struct {
	attachmentSvc service.AttachmentService
}

// NewAttachmentHandler 创建 AttachmentHandler
func NewAttachmentHandler(attachmentSvc service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentSvc: attachmentSvc}
}

// Upload 批量上传附件（字段 files）
// POST /api/defects/:id/attachments
func (h *AttachmentHandler) Upload(c *gin.Context) {
	defectID, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(err)
			return
		}
		_ = c.Error(service.ErrNoFiles)
		return
	}
	defer func() { _ = form.RemoveAll() }()

	attachments, err := h.attachmentSvc.Upload(c.Request.Context(), defectID, form, actor)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.Created(c, gin.H{"message": "Файлы загружены", "attachments": attachments})
}

// List 缺陷附件元数据
// GET /api/defects/:id/attachments
func (h *AttachmentHandler) List(c *gin.Context) {
	defectID, ok := ParamID(c, "id")
	if !ok {
		return
	}

	attachments, err := h.attachmentSvc.List(c.Request.Context(), defectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	response.OK(c, gin.H{"attachments": attachments})
}

// Download 下载附件
// GET /api/attachments/:id
func (h *AttachmentHandler) Download(c *gin.Context) {
	h.serve(c, "attachment", nil)
}

// Preview 浏览器内预览，允许跨源嵌入
// GET /api/attachments/:id/preview
func (h *AttachmentHandler) Preview(c *gin.Context) {
	h.serve(c, "inline", map[string]string{
		"Cross-Origin-Resource-Policy": "cross-origin",
		"Access-Control-Allow-Origin":  "*",
	})
}

func (h *AttachmentHandler) serve(c *gin.Context, disposition string, extra map[string]string) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	file, err := h.attachmentSvc.Open(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer file.Content.Close()

	for k, v := range extra {
		c.Header(k, v)
	}
	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file.Content, map[string]string{
		"Content-Disposition": contentDisposition(disposition, file.Name),
	})
}

// Delete 删除附件（管理员、经理或上传者）
// DELETE /api/attachments/:id
func (h *AttachmentHandler) Delete(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.attachmentSvc.Delete(c.Request.Context(), id, actor); err != nil {
		_ = c.Error(err)
		return
	}

	response.Message(c, "Вложение удалено")
}
