package repository

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryRepository 库存仓库: 阶段库存桶与库存流水
type InventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存仓库
func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *InventoryRepository) WithTx(tx *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

// FindBucket 查找零件的阶段库存桶
func (r *InventoryRepository) FindBucket(ctx context.Context, partID, stageKey string) (*entity.PartInventory, error) {
	var bucket entity.PartInventory
	err := r.db.WithContext(ctx).
		Where("part_id = ? AND stage_key = ?", partID, stageKey).
		First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bucket, nil
}

// FindBucketForUpdate 查找阶段库存桶并加行锁, 必须在事务内调用
func (r *InventoryRepository) FindBucketForUpdate(ctx context.Context, partID, stageKey string) (*entity.PartInventory, error) {
	var bucket entity.PartInventory
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("part_id = ? AND stage_key = ?", partID, stageKey).
		First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bucket, nil
}

// CreateBucket 创建阶段库存桶
func (r *InventoryRepository) CreateBucket(ctx context.Context, bucket *entity.PartInventory) error {
	return r.db.WithContext(ctx).Create(bucket).Error
}

// UpdateBucket 更新阶段库存桶
func (r *InventoryRepository) UpdateBucket(ctx context.Context, bucket *entity.PartInventory) error {
	return r.db.WithContext(ctx).Save(bucket).Error
}

// ListBucketsForPart 获取零件的全部阶段库存
func (r *InventoryRepository) ListBucketsForPart(ctx context.Context, partID string) ([]entity.PartInventory, error) {
	var buckets []entity.PartInventory
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("stage_key ASC").
		Find(&buckets).Error
	return buckets, err
}

// CreateLedgerEntry 追加库存流水
func (r *InventoryRepository) CreateLedgerEntry(ctx context.Context, entry *entity.StockLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListLedgerForEntity 获取实体的库存流水
func (r *InventoryRepository) ListLedgerForEntity(ctx context.Context, entityType, entityID string) ([]entity.StockLedgerEntry, error) {
	var entries []entity.StockLedgerEntry
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}
