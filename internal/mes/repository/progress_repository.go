package repository

import (
	"context"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// ProgressRepository 工序进度台账仓库, 只追加
type ProgressRepository struct {
	db *gorm.DB
}

// NewProgressRepository 创建进度台账仓库
func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: tx}
}

// Create 追加台账记录
func (r *ProgressRepository) Create(ctx context.Context, row *entity.OperationProgress) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// ListForOperation 获取工序台账, 按时间排序
func (r *ProgressRepository) ListForOperation(ctx context.Context, operationID string) ([]entity.OperationProgress, error) {
	var rows []entity.OperationProgress
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("operation_id = ?", operationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// progressTotals scan target for the aggregate query.
type progressTotals struct {
	Done  float64
	Scrap float64
}

// SumForOperation 汇总工序累计完成与报废数量
func (r *ProgressRepository) SumForOperation(ctx context.Context, operationID string) (done, scrap float64, err error) {
	var totals progressTotals
	err = r.db.WithContext(ctx).
		Model(&entity.OperationProgress{}).
		Select("COALESCE(SUM(qty_done_delta), 0) AS done, COALESCE(SUM(qty_scrap_delta), 0) AS scrap").
		Where("operation_id = ?", operationID).
		Scan(&totals).Error
	return totals.Done, totals.Scrap, err
}
