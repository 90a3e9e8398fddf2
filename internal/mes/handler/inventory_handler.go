package handler

import (
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// InventoryHandler 库存接口
type InventoryHandler struct {
	svc *service.InventoryService
}

// NewInventoryHandler 创建库存处理器
func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// Buckets GET /parts/:id/inventory
func (h *InventoryHandler) Buckets(c *gin.Context) {
	buckets, err := h.svc.ListBucketsForPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": buckets})
}

// PostMove POST /stock-moves
func (h *InventoryHandler) PostMove(c *gin.Context) {
	var req service.PostStockMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	entry, err := h.svc.PostStockMove(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, entry)
}

// Ledger GET /stock-ledger?entity_type=&entity_id=
func (h *InventoryHandler) Ledger(c *gin.Context) {
	entityType := c.Query("entity_type")
	entityID := c.Query("entity_id")
	if entityType == "" || entityID == "" {
		BadRequest(c, "entity_type and entity_id are required")
		return
	}

	entries, err := h.svc.ListLedgerForEntity(c.Request.Context(), entityType, entityID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": entries})
}
