package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkOrderService 客户订单服务
type WorkOrderService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	buildBOM *BuildBOMService
	routing  *RoutingService
	logger   *zap.Logger
}

// NewWorkOrderService 创建客户订单服务
func NewWorkOrderService(db *gorm.DB, repos *repository.Repositories, buildBOM *BuildBOMService, routing *RoutingService, logger *zap.Logger) *WorkOrderService {
	return &WorkOrderService{db: db, repos: repos, buildBOM: buildBOM, routing: routing, logger: logger}
}

// CreateWorkOrderRequest 创建订单请求
type CreateWorkOrderRequest struct {
	WONumber   string                 `json:"wo_number" binding:"required"`
	CustomerID string                 `json:"customer_id"`
	Notes      string                 `json:"notes"`
	Lines      []WorkOrderLineRequest `json:"lines" binding:"required,min=1"`
}

// WorkOrderLineRequest 订单行请求
type WorkOrderLineRequest struct {
	PartID       string  `json:"part_id" binding:"required"`
	QtyRequested float64 `json:"qty_requested" binding:"required,gt=0"`
}

// Create 创建订单
func (s *WorkOrderService) Create(ctx context.Context, req CreateWorkOrderRequest, createdBy string) (*entity.WorkOrder, error) {
	wo := &entity.WorkOrder{
		ID:       uuid.New().String(),
		WONumber: strings.TrimSpace(req.WONumber),
		Status:   "open",
		Notes:    req.Notes,
	}
	if req.CustomerID != "" {
		wo.CustomerID = &req.CustomerID
	}
	if createdBy != "" {
		wo.CreatedBy = &createdBy
	}

	for _, lineReq := range req.Lines {
		part, err := s.repos.Part.FindByID(ctx, lineReq.PartID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, NewValidationError("Part %s not found.", lineReq.PartID)
			}
			return nil, err
		}
		wo.Lines = append(wo.Lines, entity.WorkOrderLine{
			ID:           uuid.New().String(),
			WorkOrderID:  wo.ID,
			PartID:       &part.ID,
			PartNumber:   &part.PartNumber,
			QtyRequested: lineReq.QtyRequested,
		})
	}

	if err := s.repos.WorkOrder.Create(ctx, wo); err != nil {
		return nil, err
	}
	return wo, nil
}

// Get 查询订单
func (s *WorkOrderService) Get(ctx context.Context, id string) (*entity.WorkOrder, error) {
	return s.repos.WorkOrder.FindByID(ctx, id)
}

// List 订单列表
func (s *WorkOrderService) List(ctx context.Context, status string) ([]entity.WorkOrder, error) {
	return s.repos.WorkOrder.List(ctx, status)
}

// describeLines 摘要订单行, 用于任务标题
func describeLines(lines []entity.WorkOrderLine, maxItems int) string {
	var parts []string
	for _, l := range lines {
		if l.PartNumber == nil || l.QtyRequested <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%g× %s", l.QtyRequested, *l.PartNumber))
	}
	if len(parts) == 0 {
		return "No lines"
	}
	if len(parts) <= maxItems {
		return strings.Join(parts, ", ")
	}
	return strings.Join(parts[:maxItems], ", ") + fmt.Sprintf(" (+%d more)", len(parts)-maxItems)
}

// ApplyResult 订单应用结果
type ApplyResult struct {
	Job   *entity.Job   `json:"job"`
	Build *entity.Build `json:"build"`
}

// Apply 应用订单: 创建任务+批次, 按行展开激活BOM; 无BOM的行落为单条快照.
// 一个事务内完成.
func (s *WorkOrderService) Apply(ctx context.Context, woID string) (*ApplyResult, error) {
	var result *ApplyResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		woRepo := s.repos.WorkOrder.WithTx(tx)

		wo, err := woRepo.FindByIDForUpdate(ctx, woID)
		if err != nil {
			return err
		}
		if wo.AppliedAt != nil {
			return NewOpProgressError("Work Order %s has already been applied.", wo.WONumber)
		}
		if wo.CustomerID == nil {
			return NewValidationError("Work Order has no customer_id assigned.")
		}

		// reload lines, the locked read skips preloads
		full, err := s.repos.WorkOrder.FindByID(ctx, woID)
		if err != nil {
			return err
		}
		wo.Lines = full.Lines

		now := time.Now().UTC()
		lineSummary := describeLines(wo.Lines, 3)

		var totalOrdered float64
		for _, l := range wo.Lines {
			if l.QtyRequested > 0 {
				totalOrdered += l.QtyRequested
			}
		}

		buildRepo := s.repos.Build.WithTx(tx)

		jobNumber, err := buildRepo.NextJobNumber(ctx)
		if err != nil {
			return err
		}

		job := &entity.Job{
			ID:         uuid.New().String(),
			CustomerID: wo.CustomerID,
			JobNumber:  jobNumber,
			Title:      fmt.Sprintf("%s - %s", wo.WONumber, lineSummary),
			Status:     "active",
			Notes:      fmt.Sprintf("Generated from Work Order %s", wo.WONumber),
		}
		if err := buildRepo.CreateJob(ctx, job); err != nil {
			return err
		}

		build := &entity.Build{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			Name:       fmt.Sprintf("%s - %s", wo.WONumber, lineSummary),
			Status:     "active",
			QtyOrdered: totalOrdered,
		}
		if err := buildRepo.CreateBuild(ctx, build); err != nil {
			return err
		}

		bomRepo := s.repos.BOM.WithTx(tx)

		for _, line := range wo.Lines {
			if line.PartID == nil || line.QtyRequested <= 0 {
				continue
			}

			header, err := bomRepo.FindActiveHeaderForAssembly(ctx, *line.PartID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}

			if header == nil {
				// component-only line, single snapshot row
				part, err := s.repos.Part.FindByID(ctx, *line.PartID)
				if err != nil {
					return fmt.Errorf("part not found for part_id=%s: %w", *line.PartID, err)
				}

				lastLine, err := bomRepo.MaxLineNoForBuild(ctx, build.ID)
				if err != nil {
					return err
				}

				item := &entity.BOMItem{
					ID:         uuid.New().String(),
					BuildID:    build.ID,
					PartID:     &part.ID,
					LineNo:     lastLine + 1,
					PartNumber: &part.PartNumber,
					Name:       part.Name,
					QtyPer:     1,
					QtyPlanned: line.QtyRequested,
					Qty:        line.QtyRequested,
					Unit:       firstNonEmpty(part.Unit, "ea"),
					Source:     "wo_direct",
				}
				if part.Description != "" {
					desc := part.Description
					item.Description = &desc
				}
				if err := bomRepo.CreateItem(ctx, item); err != nil {
					return err
				}

				if part.Type != entity.PartTypePurchased {
					if err := s.routing.EnsureOperationsForBOMItemTx(ctx, tx, item); err != nil {
						return err
					}
					if err := s.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, build.ID, item.ID); err != nil {
						return err
					}
				}
				continue
			}

			// assembly path
			if err := s.buildBOM.ExplodeBOMHeaderToBuildTx(ctx, tx, build, header, line.QtyRequested); err != nil {
				return err
			}
			if build.AssemblyPartID == nil {
				build.AssemblyPartID = line.PartID
				if err := buildRepo.UpdateBuild(ctx, build); err != nil {
					return err
				}
			}
		}

		wo.Status = "applied"
		wo.AppliedAt = &now
		wo.Lines = nil
		if err := woRepo.Update(ctx, wo); err != nil {
			return err
		}

		result = &ApplyResult{Job: job, Build: build}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Work order applied",
		zap.String("work_order_id", woID),
		zap.String("job_id", result.Job.ID),
		zap.String("build_id", result.Build.ID),
	)
	return result, nil
}
