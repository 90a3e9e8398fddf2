package repository

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// BOMRepository 物料清单仓库, 覆盖主BOM与批次快照行
type BOMRepository struct {
	db *gorm.DB
}

// NewBOMRepository 创建物料清单仓库
func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *BOMRepository) WithTx(tx *gorm.DB) *BOMRepository {
	return &BOMRepository{db: tx}
}

// FindActiveHeaderForAssembly 查找装配件当前激活的BOM
func (r *BOMRepository) FindActiveHeaderForAssembly(ctx context.Context, assemblyPartID string) (*entity.BOMHeader, error) {
	var header entity.BOMHeader
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_no ASC, id ASC")
		}).
		Preload("Lines.ComponentPart").
		Where("assembly_part_id = ? AND is_active = ?", assemblyPartID, true).
		Order("updated_at DESC").
		First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &header, nil
}

// FindHeaderByID 根据ID查找BOM
func (r *BOMRepository) FindHeaderByID(ctx context.Context, id string) (*entity.BOMHeader, error) {
	var header entity.BOMHeader
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_no ASC, id ASC")
		}).
		Preload("Lines.ComponentPart").
		Where("id = ?", id).
		First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &header, nil
}

// CreateHeader 创建BOM, 含行
func (r *BOMRepository) CreateHeader(ctx context.Context, header *entity.BOMHeader) error {
	return r.db.WithContext(ctx).Create(header).Error
}

// FindItemByID 根据ID查找批次BOM行
func (r *BOMRepository) FindItemByID(ctx context.Context, id string) (*entity.BOMItem, error) {
	var item entity.BOMItem
	err := r.db.WithContext(ctx).
		Preload("Part").
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// ListItemsForBuild 获取批次BOM行
func (r *BOMRepository) ListItemsForBuild(ctx context.Context, buildID string) ([]entity.BOMItem, error) {
	var items []entity.BOMItem
	err := r.db.WithContext(ctx).
		Preload("Part").
		Where("build_id = ?", buildID).
		Order("line_no ASC, id ASC").
		Find(&items).Error
	return items, err
}

// CreateItem 创建批次BOM行
func (r *BOMRepository) CreateItem(ctx context.Context, item *entity.BOMItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItem 更新批次BOM行
func (r *BOMRepository) UpdateItem(ctx context.Context, item *entity.BOMItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem 删除批次BOM行
func (r *BOMRepository) DeleteItem(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.BOMItem{}).Error
}

// MaxLineNoForBuild 获取批次BOM行号最大值
func (r *BOMRepository) MaxLineNoForBuild(ctx context.Context, buildID string) (int, error) {
	var maxNo int
	err := r.db.WithContext(ctx).
		Model(&entity.BOMItem{}).
		Select("COALESCE(MAX(line_no), 0)").
		Where("build_id = ?", buildID).
		Scan(&maxNo).Error
	return maxNo, err
}
