package repository

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// RoutingRepository 工艺路线仓库
type RoutingRepository struct {
	db *gorm.DB
}

// NewRoutingRepository 创建工艺路线仓库
func NewRoutingRepository(db *gorm.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *RoutingRepository) WithTx(tx *gorm.DB) *RoutingRepository {
	return &RoutingRepository{db: tx}
}

// FindHeaderByID 根据ID查找路线
func (r *RoutingRepository) FindHeaderByID(ctx context.Context, id string) (*entity.RoutingHeader, error) {
	var header entity.RoutingHeader
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC, id ASC")
		}).
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

// FindActiveHeaderForPart 查找零件当前激活的路线
func (r *RoutingRepository) FindActiveHeaderForPart(ctx context.Context, partID string) (*entity.RoutingHeader, error) {
	var header entity.RoutingHeader
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC, id ASC")
		}).
		Where("part_id = ? AND is_active = ?", partID, true).
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

// ListHeadersForPart 获取零件的全部路线版本
func (r *RoutingRepository) ListHeadersForPart(ctx context.Context, partID string) ([]entity.RoutingHeader, error) {
	var headers []entity.RoutingHeader
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC, id ASC")
		}).
		Where("part_id = ?", partID).
		Order("created_at DESC").
		Find(&headers).Error
	return headers, err
}

// CreateHeader 创建路线, 含步骤
func (r *RoutingRepository) CreateHeader(ctx context.Context, header *entity.RoutingHeader) error {
	return r.db.WithContext(ctx).Create(header).Error
}

// UpdateHeader 更新路线
func (r *RoutingRepository) UpdateHeader(ctx context.Context, header *entity.RoutingHeader) error {
	return r.db.WithContext(ctx).Save(header).Error
}

// DeactivateOthersForPart 停用零件上除指定外的其他路线
func (r *RoutingRepository) DeactivateOthersForPart(ctx context.Context, partID, keepHeaderID string) error {
	return r.db.WithContext(ctx).
		Model(&entity.RoutingHeader{}).
		Where("part_id = ? AND id <> ?", partID, keepHeaderID).
		Update("is_active", false).Error
}

// ReplaceSteps 重建路线步骤
func (r *RoutingRepository) ReplaceSteps(ctx context.Context, headerID string, steps []entity.RoutingStep) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("routing_header_id = ?", headerID).
			Delete(&entity.RoutingStep{}).Error; err != nil {
			return err
		}
		if len(steps) == 0 {
			return nil
		}
		return tx.Create(&steps).Error
	})
}

// ListTemplatesForPartType 获取零件类型的旧版模板步骤
func (r *RoutingRepository) ListTemplatesForPartType(ctx context.Context, partTypeID string) ([]entity.RoutingTemplate, error) {
	var templates []entity.RoutingTemplate
	err := r.db.WithContext(ctx).
		Where("part_type_id = ?", partTypeID).
		Order("sequence ASC, id ASC").
		Find(&templates).Error
	return templates, err
}
