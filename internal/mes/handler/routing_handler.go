package handler

import (
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// RoutingHandler 工艺路线接口
type RoutingHandler struct {
	svc *service.RoutingService
}

// NewRoutingHandler 创建路线处理器
func NewRoutingHandler(svc *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{svc: svc}
}

// Presets GET /routing/presets
func (h *RoutingHandler) Presets(c *gin.Context) {
	Success(c, gin.H{"items": service.ListStepPresets()})
}

// ListForPart GET /parts/:id/routings
func (h *RoutingHandler) ListForPart(c *gin.Context) {
	headers, err := h.svc.ListRoutingsForPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": headers})
}

// Save POST /parts/:id/routings
func (h *RoutingHandler) Save(c *gin.Context) {
	var req service.SaveRoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	header, err := h.svc.SaveRoutingForPart(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, header)
}
