package handler

import (
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// BuildBOMHandler 批次BOM接口
type BuildBOMHandler struct {
	buildBOM *service.BuildBOMService
	routing  *service.RoutingService
}

// NewBuildBOMHandler 创建批次BOM处理器
func NewBuildBOMHandler(buildBOM *service.BuildBOMService, routing *service.RoutingService) *BuildBOMHandler {
	return &BuildBOMHandler{buildBOM: buildBOM, routing: routing}
}

// List GET /builds/:id/bom
func (h *BuildBOMHandler) List(c *gin.Context) {
	items, err := h.buildBOM.ListBOMItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": items})
}

// Add POST /builds/:id/bom
func (h *BuildBOMHandler) Add(c *gin.Context) {
	var req service.AddBOMItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	item, err := h.buildBOM.AddBOMItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, item)
}

// Delete DELETE /bom-items/:id
func (h *BuildBOMHandler) Delete(c *gin.Context) {
	result, err := h.buildBOM.DeleteBOMItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, result)
}

// Regenerate POST /builds/:id/ops/regenerate
func (h *BuildBOMHandler) Regenerate(c *gin.Context) {
	if err := h.routing.RegenerateOperationsForBuild(c.Request.Context(), c.Param("id")); err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"regenerated": true})
}
