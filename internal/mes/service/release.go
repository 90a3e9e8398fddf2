package service

import (
	"context"
	"errors"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"gorm.io/gorm"
)

// Release gating is per BOM item within a build: exactly one non-terminal
// operation holds is_released at a time, chosen by (sequence, id). These two
// functions are the sole writers of is_released.

// EnforceReleaseStateForBOMItemTx 重算放行状态: 先全部清除, 再放行顺序号最小
// 的非终态工序. 幂等.
func (s *RoutingService) EnforceReleaseStateForBOMItemTx(ctx context.Context, tx *gorm.DB, buildID, bomItemID string) error {
	if err := tx.WithContext(ctx).
		Model(&entity.BuildOperation{}).
		Where("build_id = ? AND bom_item_id = ?", buildID, bomItemID).
		Update("is_released", false).Error; err != nil {
		return err
	}

	var next entity.BuildOperation
	err := tx.WithContext(ctx).
		Where("build_id = ? AND bom_item_id = ? AND status NOT IN ?", buildID, bomItemID, entity.TerminalOpStatuses).
		Order("sequence ASC, id ASC").
		First(&next).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	return tx.WithContext(ctx).
		Model(&entity.BuildOperation{}).
		Where("id = ?", next.ID).
		Update("is_released", true).Error
}

// ReleaseNextForBOMItemTx 完成推进变体: 放行当前工序之后顺序号严格更大的第一个
// 非终态工序. 被放行工序若不在 blocked/in_progress, 归位为 queue.
func (s *RoutingService) ReleaseNextForBOMItemTx(ctx context.Context, tx *gorm.DB, current *entity.BuildOperation) error {
	if current.BOMItemID == nil {
		return nil
	}

	if err := tx.WithContext(ctx).
		Model(&entity.BuildOperation{}).
		Where("build_id = ? AND bom_item_id = ?", current.BuildID, *current.BOMItemID).
		Update("is_released", false).Error; err != nil {
		return err
	}

	var next entity.BuildOperation
	err := tx.WithContext(ctx).
		Where("build_id = ? AND bom_item_id = ? AND sequence > ? AND status NOT IN ?",
			current.BuildID, *current.BOMItemID, current.Sequence, entity.TerminalOpStatuses).
		Order("sequence ASC, id ASC").
		First(&next).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	updates := map[string]interface{}{"is_released": true}
	if next.Status != entity.OpStatusBlocked && next.Status != entity.OpStatusInProgress {
		updates["status"] = entity.OpStatusQueue
	}
	return tx.WithContext(ctx).
		Model(&entity.BuildOperation{}).
		Where("id = ?", next.ID).
		Updates(updates).Error
}
