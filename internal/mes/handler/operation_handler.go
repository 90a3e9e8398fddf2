package handler

import (
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// OperationHandler 工序生命周期与进度接口
type OperationHandler struct {
	lifecycle *service.LifecycleService
	progress  *service.ProgressService
}

// NewOperationHandler 创建工序处理器
func NewOperationHandler(lifecycle *service.LifecycleService, progress *service.ProgressService) *OperationHandler {
	return &OperationHandler{lifecycle: lifecycle, progress: progress}
}

func (h *OperationHandler) actor(c *gin.Context, body actionBody) service.ActorContext {
	return service.ActorContext{
		UserID:  GetUserID(c),
		IsAdmin: IsAdmin(c),
		Force:   body.Force,
		Note:    body.Note,
	}
}

type actionBody struct {
	Force bool   `json:"force"`
	Note  string `json:"note"`
}

// Get GET /ops/:id
func (h *OperationHandler) Get(c *gin.Context) {
	op, err := h.lifecycle.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// ListForBuild GET /builds/:id/ops
func (h *OperationHandler) ListForBuild(c *gin.Context) {
	ops, err := h.lifecycle.ListForBuild(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": ops})
}

// MyActive GET /ops/active
func (h *OperationHandler) MyActive(c *gin.Context) {
	ops, err := h.lifecycle.MyActiveOps(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": ops})
}

// Start POST /ops/:id/start
func (h *OperationHandler) Start(c *gin.Context) {
	var body actionBody
	_ = c.ShouldBindJSON(&body)

	op, err := h.lifecycle.Start(c.Request.Context(), c.Param("id"), h.actor(c, body))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// Progress POST /ops/:id/progress
func (h *OperationHandler) Progress(c *gin.Context) {
	var req service.AddProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	req.OperationID = c.Param("id")
	req.UserID = GetUserID(c)
	req.IsAdmin = IsAdmin(c)

	result, err := h.progress.AddOpProgress(c.Request.Context(), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, result)
}

// Complete POST /ops/:id/complete
func (h *OperationHandler) Complete(c *gin.Context) {
	var body actionBody
	_ = c.ShouldBindJSON(&body)

	op, err := h.lifecycle.Complete(c.Request.Context(), c.Param("id"), h.actor(c, body))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// Cancel POST /ops/:id/cancel
func (h *OperationHandler) Cancel(c *gin.Context) {
	var body actionBody
	_ = c.ShouldBindJSON(&body)

	op, err := h.lifecycle.Cancel(c.Request.Context(), c.Param("id"), h.actor(c, body))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// Block POST /ops/:id/block
func (h *OperationHandler) Block(c *gin.Context) {
	var req service.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}

	op, err := h.lifecycle.Block(c.Request.Context(), c.Param("id"), h.actor(c, actionBody{}), req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// Unblock POST /ops/:id/unblock
func (h *OperationHandler) Unblock(c *gin.Context) {
	op, err := h.lifecycle.Unblock(c.Request.Context(), c.Param("id"), h.actor(c, actionBody{}))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// Reopen POST /ops/:id/reopen
func (h *OperationHandler) Reopen(c *gin.Context) {
	op, err := h.lifecycle.Reopen(c.Request.Context(), c.Param("id"), h.actor(c, actionBody{}))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, op)
}

// Totals GET /ops/:id/totals
func (h *OperationHandler) Totals(c *gin.Context) {
	totals, err := h.progress.GetOpTotals(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, totals)
}

// Ledger GET /ops/:id/ledger
func (h *OperationHandler) Ledger(c *gin.Context) {
	rows, err := h.progress.ListLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": rows})
}
