package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BuildBOMService 批次BOM服务: 快照行维护与BOM展开
type BuildBOMService struct {
	db      *gorm.DB
	repos   *repository.Repositories
	routing *RoutingService
	logger  *zap.Logger
}

// NewBuildBOMService 创建批次BOM服务
func NewBuildBOMService(db *gorm.DB, repos *repository.Repositories, routing *RoutingService, logger *zap.Logger) *BuildBOMService {
	return &BuildBOMService{db: db, repos: repos, routing: routing, logger: logger}
}

// ExplodeBOMHeaderToBuildTx 单层BOM展开: 按行快照到批次, planned = qty_per ×
// 装配数量, 非正数行跳过, MAKE行生成工序.
func (s *BuildBOMService) ExplodeBOMHeaderToBuildTx(ctx context.Context, tx *gorm.DB, build *entity.Build, header *entity.BOMHeader, assemblyQty float64) error {
	bomRepo := s.repos.BOM.WithTx(tx)

	for i := range header.Lines {
		line := &header.Lines[i]
		qtyPlanned := line.QtyPer * assemblyQty
		if qtyPlanned <= 0 {
			continue
		}
		if line.ComponentPart == nil {
			return NewValidationError("BOM line %s has no component part loaded.", line.ID)
		}

		item := &entity.BOMItem{
			ID:          uuid.New().String(),
			BuildID:     build.ID,
			BOMHeaderID: &header.ID,
			BOMLineID:   &line.ID,
			PartID:      &line.ComponentPartID,
			LineNo:      line.LineNo,
			PartNumber:  &line.ComponentPart.PartNumber,
			Name:        line.ComponentPart.Name,
			QtyPer:      line.QtyPer,
			QtyPlanned:  qtyPlanned,
			Qty:         qtyPlanned,
			Unit:        firstNonEmpty(line.ComponentPart.Unit, "ea"),
			Source:      "bom_snapshot",
		}
		if line.ComponentPart.Description != "" {
			desc := line.ComponentPart.Description
			item.Description = &desc
		}
		if err := bomRepo.CreateItem(ctx, item); err != nil {
			return err
		}

		// ops only for MAKE components
		method := line.MakeMethod
		if method == "" {
			method = entity.MakeMethodMake
		}
		if method == entity.MakeMethodMake {
			item.BOMLine = line
			if err := s.routing.EnsureOperationsForBOMItemTx(ctx, tx, item); err != nil {
				return err
			}
			if err := s.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, build.ID, item.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddBOMItemRequest 新增批次BOM行请求
type AddBOMItemRequest struct {
	PartID      string  `json:"part_id"`
	Name        string  `json:"name"`
	PartNumber  string  `json:"part_number"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	QtyPer      float64 `json:"qty_per"`
}

// AddBOMItem 手工追加批次BOM行.
// 选择目录零件时快照其字段; 否则自由文本行至少要有名称.
func (s *BuildBOMService) AddBOMItem(ctx context.Context, buildID string, req AddBOMItemRequest) (*entity.BOMItem, error) {
	build, err := s.repos.Build.FindBuildByID(ctx, buildID)
	if err != nil {
		return nil, err
	}

	qtyPer := req.QtyPer
	if qtyPer <= 0 {
		qtyPer = 1
	}
	qtyPlanned := qtyPer * build.QtyOrdered

	var result *entity.BOMItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bomRepo := s.repos.BOM.WithTx(tx)

		lastLine, err := bomRepo.MaxLineNoForBuild(ctx, buildID)
		if err != nil {
			return err
		}

		item := &entity.BOMItem{
			ID:         uuid.New().String(),
			BuildID:    build.ID,
			LineNo:     lastLine + 1,
			QtyPer:     qtyPer,
			QtyPlanned: qtyPlanned,
			Qty:        qtyPlanned,
			Unit:       firstNonEmpty(strings.TrimSpace(req.Unit), "ea"),
			Source:     "manual",
		}

		if partID := strings.TrimSpace(req.PartID); partID != "" {
			part, err := s.repos.Part.FindByID(ctx, partID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return NewValidationError("Selected part not found.")
				}
				return err
			}
			item.PartID = &part.ID
			item.PartNumber = &part.PartNumber
			item.Name = part.Name
			if part.Description != "" {
				desc := part.Description
				item.Description = &desc
			}
			item.Unit = firstNonEmpty(part.Unit, item.Unit)
		} else {
			name := strings.TrimSpace(req.Name)
			if name == "" {
				return NewValidationError("Enter a name or select a catalog part.")
			}
			item.Name = name
			if pn := strings.TrimSpace(req.PartNumber); pn != "" {
				item.PartNumber = &pn
			}
			if desc := strings.TrimSpace(req.Description); desc != "" {
				item.Description = &desc
			}
		}

		if err := bomRepo.CreateItem(ctx, item); err != nil {
			return err
		}
		if err := s.routing.EnsureOperationsForBOMItemTx(ctx, tx, item); err != nil {
			return err
		}
		if err := s.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, build.ID, item.ID); err != nil {
			return err
		}

		result = item
		return nil
	})
	return result, err
}

// DeleteBOMItemResult 删除批次BOM行结果
type DeleteBOMItemResult struct {
	BuildID        string `json:"build_id"`
	DeletedCount   int64  `json:"deleted_count"`
	NonQueuedCount int64  `json:"non_queued_count"`
}

// DeleteBOMItem 删除批次BOM行: 仅清除排队中的工序, 已启动工序保留并报告数量.
func (s *BuildBOMService) DeleteBOMItem(ctx context.Context, bomItemID string) (*DeleteBOMItemResult, error) {
	item, err := s.repos.BOM.FindItemByID(ctx, bomItemID)
	if err != nil {
		return nil, err
	}

	var result *DeleteBOMItemResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opsResult, err := s.routing.DeleteQueuedOperationsForBOMItemTx(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if err := s.repos.BOM.WithTx(tx).DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		result = &DeleteBOMItemResult{
			BuildID:        item.BuildID,
			DeletedCount:   opsResult.DeletedCount,
			NonQueuedCount: opsResult.NonQueuedCount,
		}
		return nil
	})
	return result, err
}

// ListBOMItems 获取批次BOM行
func (s *BuildBOMService) ListBOMItems(ctx context.Context, buildID string) ([]entity.BOMItem, error) {
	return s.repos.BOM.ListItemsForBuild(ctx, buildID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
