package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// AdminService 管理端审计服务
type AdminService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewAdminService 创建管理端审计服务
func NewAdminService(repos *repository.Repositories, logger *zap.Logger) *AdminService {
	return &AdminService{repos: repos, logger: logger}
}

// ListOpsAudit 审计列表
func (s *AdminService) ListOpsAudit(ctx context.Context, filter repository.OperationAuditFilter) ([]entity.BuildOperation, error) {
	return s.repos.Operation.ListForAudit(ctx, filter)
}

// ExportOpsAudit 导出审计列表为Excel
func (s *AdminService) ExportOpsAudit(ctx context.Context, filter repository.OperationAuditFilter) (*bytes.Buffer, error) {
	ops, err := s.repos.Operation.ListForAudit(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Operations"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Operation ID", "Build", "BOM Item", "Op Key", "Op Name", "Module", "Seq", "Status", "Released", "Qty Required", "Qty Done", "Qty Scrap", "Claimed By", "Updated At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, op := range ops {
		bomItemName := ""
		if op.BOMItem != nil {
			bomItemName = op.BOMItem.Name
		}
		claimedBy := ""
		if op.Owner != nil {
			claimedBy = op.Owner.Username
		} else if op.ClaimedBy != nil {
			claimedBy = *op.ClaimedBy
		}

		values := []interface{}{
			op.ID,
			op.BuildID,
			bomItemName,
			op.OpKey,
			op.OpName,
			op.ModuleKey,
			op.Sequence,
			entity.NormalizeOpStatus(op.Status),
			op.IsReleased,
			op.QtyRequired,
			op.QtyDone,
			op.QtyScrap,
			claimedBy,
			op.UpdatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}

	s.logger.Info("Ops audit exported", zap.Int("rows", len(ops)))
	return buf, nil
}
