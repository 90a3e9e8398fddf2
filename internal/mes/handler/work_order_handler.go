package handler

import (
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// WorkOrderHandler 客户订单接口
type WorkOrderHandler struct {
	svc *service.WorkOrderService
}

// NewWorkOrderHandler 创建订单处理器
func NewWorkOrderHandler(svc *service.WorkOrderService) *WorkOrderHandler {
	return &WorkOrderHandler{svc: svc}
}

// Create POST /work-orders
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req service.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	wo, err := h.svc.Create(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, wo)
}

// Get GET /work-orders/:id
func (h *WorkOrderHandler) Get(c *gin.Context) {
	wo, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, wo)
}

// List GET /work-orders
func (h *WorkOrderHandler) List(c *gin.Context) {
	orders, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": orders})
}

// Apply POST /work-orders/:id/apply
func (h *WorkOrderHandler) Apply(c *gin.Context) {
	result, err := h.svc.Apply(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Created(c, result)
}
