package repository

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkOrderRepository 客户订单仓库
type WorkOrderRepository struct {
	db *gorm.DB
}

// NewWorkOrderRepository 创建客户订单仓库
func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *WorkOrderRepository) WithTx(tx *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: tx}
}

// FindByID 根据ID查找订单
func (r *WorkOrderRepository) FindByID(ctx context.Context, id string) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Lines.Part").
		Where("id = ?", id).
		First(&wo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wo, nil
}

// FindByIDForUpdate 根据ID查找订单并加行锁, 必须在事务内调用
func (r *WorkOrderRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.WorkOrder, error) {
	var wo entity.WorkOrder
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&wo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wo, nil
}

// Create 创建订单, 含订单行
func (r *WorkOrderRepository) Create(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

// Update 更新订单
func (r *WorkOrderRepository) Update(ctx context.Context, wo *entity.WorkOrder) error {
	return r.db.WithContext(ctx).Save(wo).Error
}

// List 获取订单列表
func (r *WorkOrderRepository) List(ctx context.Context, status string) ([]entity.WorkOrder, error) {
	var orders []entity.WorkOrder
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.
		Preload("Lines").
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}
