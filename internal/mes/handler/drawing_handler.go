package handler

import (
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// DrawingHandler 零件图纸接口
type DrawingHandler struct {
	svc *service.DrawingService
}

// NewDrawingHandler 创建图纸处理器
func NewDrawingHandler(svc *service.DrawingService) *DrawingHandler {
	return &DrawingHandler{svc: svc}
}

// Upload POST /parts/:id/drawings (multipart form, field "file")
func (h *DrawingHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, "open upload: "+err.Error())
		return
	}
	defer file.Close()

	drawing, err := h.svc.Upload(
		c.Request.Context(),
		c.Param("id"),
		fileHeader.Filename,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
		file,
		GetUserID(c),
	)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, drawing)
}

// List GET /parts/:id/drawings
func (h *DrawingHandler) List(c *gin.Context) {
	drawings, err := h.svc.ListForPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": drawings})
}

// DownloadURL GET /drawings/:id/url
func (h *DrawingHandler) DownloadURL(c *gin.Context) {
	url, err := h.svc.DownloadURL(c.Request.Context(), c.Param("id"), 15*time.Minute)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"url": url})
}

// Delete DELETE /drawings/:id
func (h *DrawingHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}
