package repository

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// PartRepository 零件目录仓库
type PartRepository struct {
	db *gorm.DB
}

// NewPartRepository 创建零件目录仓库
func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *PartRepository) WithTx(tx *gorm.DB) *PartRepository {
	return &PartRepository{db: tx}
}

// FindByID 根据ID查找零件
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).
		Preload("PartType").
		Where("id = ?", id).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// FindByPartNumber 根据零件号查找零件
func (r *PartRepository) FindByPartNumber(ctx context.Context, partNumber string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).
		Where("part_number = ?", partNumber).
		First(&part).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &part, nil
}

// Create 创建零件
func (r *PartRepository) Create(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// Update 更新零件
func (r *PartRepository) Update(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// List 分页获取零件列表
func (r *PartRepository) List(ctx context.Context, keyword string, page, pageSize int) ([]entity.Part, int64, error) {
	var parts []entity.Part
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Part{})
	if keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("part_number ILIKE ? OR name ILIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	err := query.
		Preload("PartType").
		Order("part_number ASC").
		Find(&parts).Error
	return parts, total, err
}
