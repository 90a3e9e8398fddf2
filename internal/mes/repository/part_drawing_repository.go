package repository

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// PartDrawingRepository 零件图纸仓库
type PartDrawingRepository struct {
	db *gorm.DB
}

// NewPartDrawingRepository 创建零件图纸仓库
func NewPartDrawingRepository(db *gorm.DB) *PartDrawingRepository {
	return &PartDrawingRepository{db: db}
}

// FindByID 根据ID查找图纸
func (r *PartDrawingRepository) FindByID(ctx context.Context, id string) (*entity.PartDrawing, error) {
	var drawing entity.PartDrawing
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&drawing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &drawing, nil
}

// Create 创建图纸记录
func (r *PartDrawingRepository) Create(ctx context.Context, drawing *entity.PartDrawing) error {
	return r.db.WithContext(ctx).Create(drawing).Error
}

// ListForPart 获取零件的图纸列表
func (r *PartDrawingRepository) ListForPart(ctx context.Context, partID string) ([]entity.PartDrawing, error) {
	var drawings []entity.PartDrawing
	err := r.db.WithContext(ctx).
		Where("part_id = ?", partID).
		Order("created_at DESC").
		Find(&drawings).Error
	return drawings, err
}

// Delete 删除图纸记录
func (r *PartDrawingRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&entity.PartDrawing{}).Error
}
