package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ResolvedStep 路线解析结果, source-neutral step projection used by the
// operation generator.
type ResolvedStep struct {
	OpKey        string `json:"op_key"`
	OpName       string `json:"op_name"`
	ModuleKey    string `json:"module_key"`
	Sequence     int    `json:"sequence"`
	IsOutsourced bool   `json:"is_outsourced"`
}

// RoutingService 工艺路线服务: 路线解析, 工序生成, 放行门禁
type RoutingService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewRoutingService 创建工艺路线服务
func NewRoutingService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *RoutingService {
	return &RoutingService{db: db, repos: repos, logger: logger}
}

// ResolveRoutingSteps 路线解析, 纯读取.
// 优先级: BOM行路线覆盖 > 零件激活路线 > 零件类型旧版模板.
// BUY/OUTSOURCE 行不生成工序, 返回空.
func (s *RoutingService) ResolveRoutingSteps(ctx context.Context, item *entity.BOMItem) ([]ResolvedStep, error) {
	return s.resolveRoutingSteps(ctx, s.db, item)
}

// resolveRoutingSteps reads through the given handle so callers inside a
// transaction see one snapshot.
func (s *RoutingService) resolveRoutingSteps(ctx context.Context, db *gorm.DB, item *entity.BOMItem) ([]ResolvedStep, error) {
	routingRepo := s.repos.Routing.WithTx(db)

	// BOM line override first
	if item.BOMLineID != nil {
		line := item.BOMLine
		if line == nil {
			var bomLine entity.BOMLine
			err := db.WithContext(ctx).Where("id = ?", *item.BOMLineID).First(&bomLine).Error
			if err == nil {
				line = &bomLine
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
		if line != nil {
			if line.MakeMethod != "" && line.MakeMethod != entity.MakeMethodMake {
				return nil, nil
			}
			if line.RoutingOverrideID != nil {
				header, err := routingRepo.FindHeaderByID(ctx, *line.RoutingOverrideID)
				if err != nil && !errors.Is(err, repository.ErrNotFound) {
					return nil, err
				}
				if header != nil {
					return stepsFromHeader(header), nil
				}
			}
		}
	}

	if item.PartID == nil {
		return nil, nil
	}

	// active per-part routing
	header, err := routingRepo.FindActiveHeaderForPart(ctx, *item.PartID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if header != nil {
		return stepsFromHeader(header), nil
	}

	// legacy part-type templates
	part, err := s.repos.Part.WithTx(db).FindByID(ctx, *item.PartID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if part.PartTypeID == nil {
		return nil, nil
	}
	templates, err := routingRepo.ListTemplatesForPartType(ctx, *part.PartTypeID)
	if err != nil {
		return nil, err
	}
	steps := make([]ResolvedStep, 0, len(templates))
	for _, t := range templates {
		steps = append(steps, ResolvedStep{
			OpKey:        t.OpKey,
			OpName:       t.OpName,
			ModuleKey:    t.ModuleKey,
			Sequence:     t.Sequence,
			IsOutsourced: t.IsOutsourced,
		})
	}
	return steps, nil
}

func stepsFromHeader(header *entity.RoutingHeader) []ResolvedStep {
	steps := make([]ResolvedStep, 0, len(header.Steps))
	for _, st := range header.Steps {
		steps = append(steps, ResolvedStep{
			OpKey:        st.OpKey,
			OpName:       st.OpName,
			ModuleKey:    st.ModuleKey,
			Sequence:     st.Sequence,
			IsOutsourced: st.IsOutsourced,
		})
	}
	return steps
}

// EnsureOperationsForBOMItemTx 幂等工序生成, 在事务内执行.
// 以 (build, bom_item, op_key) 为键: 已存在的工序只更新路线投影字段,
// 绝不触碰状态/认领/进度.
func (s *RoutingService) EnsureOperationsForBOMItemTx(ctx context.Context, tx *gorm.DB, item *entity.BOMItem) error {
	steps, err := s.resolveRoutingSteps(ctx, tx, item)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}

	build, err := s.repos.Build.WithTx(tx).FindBuildByID(ctx, item.BuildID)
	if err != nil {
		return err
	}

	// planned qty is per-assembly qty * assemblies ordered
	plannedQty := build.QtyOrdered * item.QtyPer

	opRepo := s.repos.Operation.WithTx(tx)
	for _, step := range steps {
		existing, err := opRepo.FindByKey(ctx, item.BuildID, &item.ID, step.OpKey)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if existing != nil {
			existing.QtyPlanned = plannedQty
			existing.OpName = step.OpName
			existing.ModuleKey = step.ModuleKey
			existing.Sequence = step.Sequence
			existing.IsOutsourced = step.IsOutsourced
			if err := opRepo.Update(ctx, existing); err != nil {
				return err
			}
			continue
		}

		op := &entity.BuildOperation{
			ID:           uuid.New().String(),
			BuildID:      item.BuildID,
			BOMItemID:    &item.ID,
			OpKey:        step.OpKey,
			OpName:       step.OpName,
			ModuleKey:    step.ModuleKey,
			Sequence:     step.Sequence,
			IsOutsourced: step.IsOutsourced,
			Status:       entity.OpStatusQueue,
			QtyPlanned:   plannedQty,
			QtyRequired:  plannedQty,
		}
		if err := opRepo.Create(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// EnsureOperationsForBOMItem 幂等工序生成 + 放行门禁, 独立事务.
func (s *RoutingService) EnsureOperationsForBOMItem(ctx context.Context, bomItemID string) error {
	item, err := s.repos.BOM.FindItemByID(ctx, bomItemID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.EnsureOperationsForBOMItemTx(ctx, tx, item); err != nil {
			return err
		}
		return s.EnforceReleaseStateForBOMItemTx(ctx, tx, item.BuildID, item.ID)
	})
}

// DeleteQueuedResult 排队工序删除结果
type DeleteQueuedResult struct {
	DeletedCount   int64 `json:"deleted_count"`
	NonQueuedCount int64 `json:"non_queued_count"`
}

// DeleteQueuedOperationsForBOMItemTx 只删除仍在排队的工序, 已启动的保留并计数.
func (s *RoutingService) DeleteQueuedOperationsForBOMItemTx(ctx context.Context, tx *gorm.DB, bomItemID string) (*DeleteQueuedResult, error) {
	opRepo := s.repos.Operation.WithTx(tx)

	deleted, err := opRepo.DeleteQueuedForBOMItem(ctx, bomItemID)
	if err != nil {
		return nil, err
	}
	survivors, err := opRepo.CountNonQueuedForBOMItem(ctx, bomItemID)
	if err != nil {
		return nil, err
	}

	if survivors > 0 {
		s.logger.Warn("BOM item had started operations left intact",
			zap.String("bom_item_id", bomItemID),
			zap.Int64("non_queued_count", survivors),
		)
	}
	return &DeleteQueuedResult{DeletedCount: deleted, NonQueuedCount: survivors}, nil
}

// RegenerateOperationsForBuild 对批次所有BOM行重新生成工序并重算放行.
func (s *RoutingService) RegenerateOperationsForBuild(ctx context.Context, buildID string) error {
	build, err := s.repos.Build.FindBuildByID(ctx, buildID)
	if err != nil {
		return err
	}
	if build.Job != nil && build.Job.IsArchived {
		return NewOpProgressError("This job is archived. Regenerate Ops is disabled.")
	}

	items, err := s.repos.BOM.ListItemsForBuild(ctx, buildID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range items {
			item := &items[i]
			if err := s.EnsureOperationsForBOMItemTx(ctx, tx, item); err != nil {
				return fmt.Errorf("regenerate ops for bom item %s: %w", item.ID, err)
			}
			if err := s.EnforceReleaseStateForBOMItemTx(ctx, tx, buildID, item.ID); err != nil {
				return err
			}
		}
		return nil
	})
}
