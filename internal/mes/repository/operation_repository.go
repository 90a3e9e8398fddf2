package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OperationRepository 工序仓库
type OperationRepository struct {
	db *gorm.DB
}

// NewOperationRepository 创建工序仓库
func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *OperationRepository) WithTx(tx *gorm.DB) *OperationRepository {
	return &OperationRepository{db: tx}
}

// FindByID 根据ID查找工序
func (r *OperationRepository) FindByID(ctx context.Context, id string) (*entity.BuildOperation, error) {
	var op entity.BuildOperation
	err := r.db.WithContext(ctx).
		Preload("BOMItem").
		Preload("Owner").
		Preload("Detail").
		Where("id = ?", id).
		First(&op).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

// FindByIDForUpdate 根据ID查找工序并加行锁, 必须在事务内调用
func (r *OperationRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.BuildOperation, error) {
	var op entity.BuildOperation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&op).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

// FindByKey 根据 (build, bom_item, op_key) 查找工序
func (r *OperationRepository) FindByKey(ctx context.Context, buildID string, bomItemID *string, opKey string) (*entity.BuildOperation, error) {
	var op entity.BuildOperation
	query := r.db.WithContext(ctx).
		Where("build_id = ? AND op_key = ?", buildID, opKey)
	if bomItemID != nil {
		query = query.Where("bom_item_id = ?", *bomItemID)
	} else {
		query = query.Where("bom_item_id IS NULL")
	}
	err := query.First(&op).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

// Create 创建工序
func (r *OperationRepository) Create(ctx context.Context, op *entity.BuildOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// Update 更新工序
func (r *OperationRepository) Update(ctx context.Context, op *entity.BuildOperation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

// ListForBOMItem 获取BOM行的工序列表, 按顺序号排序
func (r *OperationRepository) ListForBOMItem(ctx context.Context, bomItemID string) ([]entity.BuildOperation, error) {
	var ops []entity.BuildOperation
	err := r.db.WithContext(ctx).
		Where("bom_item_id = ?", bomItemID).
		Order("sequence ASC, id ASC").
		Find(&ops).Error
	return ops, err
}

// ListForBuild 获取批次的全部工序
func (r *OperationRepository) ListForBuild(ctx context.Context, buildID string) ([]entity.BuildOperation, error) {
	var ops []entity.BuildOperation
	err := r.db.WithContext(ctx).
		Preload("BOMItem").
		Where("build_id = ?", buildID).
		Order("sequence ASC, id ASC").
		Find(&ops).Error
	return ops, err
}

// ListMyActive 获取用户当前持有的未结束工序
func (r *OperationRepository) ListMyActive(ctx context.Context, userID string) ([]entity.BuildOperation, error) {
	var ops []entity.BuildOperation
	err := r.db.WithContext(ctx).
		Preload("BOMItem").
		Where("claimed_by = ? AND status NOT IN ?", userID, entity.TerminalOpStatuses).
		Order("claim_touched_at DESC").
		Find(&ops).Error
	return ops, err
}

// DeleteQueuedForBOMItem 删除BOM行上仍排队的工序, 返回删除数量
func (r *OperationRepository) DeleteQueuedForBOMItem(ctx context.Context, bomItemID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("bom_item_id = ? AND status = ?", bomItemID, entity.OpStatusQueue).
		Delete(&entity.BuildOperation{})
	return result.RowsAffected, result.Error
}

// CountNonQueuedForBOMItem 统计BOM行上已启动的工序数
func (r *OperationRepository) CountNonQueuedForBOMItem(ctx context.Context, bomItemID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.BuildOperation{}).
		Where("bom_item_id = ? AND status <> ?", bomItemID, entity.OpStatusQueue).
		Count(&count).Error
	return count, err
}

// UpsertDetail 创建或更新工序明细
func (r *OperationRepository) UpsertDetail(ctx context.Context, detail *entity.OperationDetail) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "operation_id"}},
			UpdateAll: true,
		}).
		Create(detail).Error
}

// FindDetail 查找工序明细
func (r *OperationRepository) FindDetail(ctx context.Context, operationID string) (*entity.OperationDetail, error) {
	var detail entity.OperationDetail
	err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		First(&detail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &detail, nil
}

// OperationAuditFilter 工序审计查询条件
type OperationAuditFilter struct {
	BuildID   string
	Status    string
	ClaimedBy string
	Since     *time.Time
	Until     *time.Time
}

// ListForAudit 管理端审计列表
func (r *OperationRepository) ListForAudit(ctx context.Context, filter OperationAuditFilter) ([]entity.BuildOperation, error) {
	var ops []entity.BuildOperation

	query := r.db.WithContext(ctx).Model(&entity.BuildOperation{})

	if filter.BuildID != "" {
		query = query.Where("build_id = ?", filter.BuildID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", entity.NormalizeOpStatus(filter.Status))
	}
	if filter.ClaimedBy != "" {
		query = query.Where("claimed_by = ?", filter.ClaimedBy)
	}
	if filter.Since != nil {
		query = query.Where("updated_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("updated_at <= ?", *filter.Until)
	}

	err := query.
		Preload("BOMItem").
		Preload("Owner").
		Order("updated_at DESC").
		Find(&ops).Error
	return ops, err
}
