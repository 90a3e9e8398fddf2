package handler

import (
	"fmt"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler 管理端审计接口
type AdminHandler struct {
	svc *service.AdminService
}

// NewAdminHandler 创建管理端处理器
func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func auditFilterFromQuery(c *gin.Context) repository.OperationAuditFilter {
	filter := repository.OperationAuditFilter{
		BuildID:   c.Query("build_id"),
		Status:    c.Query("status"),
		ClaimedBy: c.Query("claimed_by"),
	}
	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}
	if until := c.Query("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = &t
		}
	}
	return filter
}

// OpsAudit GET /admin/ops-audit
func (h *AdminHandler) OpsAudit(c *gin.Context) {
	ops, err := h.svc.ListOpsAudit(c.Request.Context(), auditFilterFromQuery(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	Success(c, gin.H{"items": ops})
}

// OpsAuditExport GET /admin/ops-audit/export
func (h *AdminHandler) OpsAuditExport(c *gin.Context) {
	buf, err := h.svc.ExportOpsAudit(c.Request.Context(), auditFilterFromQuery(c))
	if err != nil {
		RespondServiceError(c, err)
		return
	}

	fileName := fmt.Sprintf("ops-audit-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
