package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StageBlank 毛坯阶段库存桶
const StageBlank = "blank"

// rawMatsBlankOpKeys, raw-material cut ops whose good output lands in the
// blank stage bucket.
var rawMatsBlankOpKeys = map[string]bool{
	"waterjet_cut": true,
	"laser_cut":    true,
	"bandsaw_cut":  true,
	"tablesaw_cut": true,
	"edm_cut":      true,
}

// InventoryService 库存服务: 阶段库存桶与库存流水
type InventoryService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewInventoryService 创建库存服务
func NewInventoryService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *InventoryService {
	return &InventoryService{db: db, repos: repos, logger: logger}
}

// ApplyPartInventoryDeltaTx 对零件阶段库存桶施加增量, 桶不存在则建桶.
// 零增量为空操作.
func (s *InventoryService) ApplyPartInventoryDeltaTx(ctx context.Context, tx *gorm.DB, partID, stageKey string, qtyDelta float64, uom string) error {
	if partID == "" || stageKey == "" || qtyDelta == 0 {
		return nil
	}

	invRepo := s.repos.Inventory.WithTx(tx)

	bucket, err := invRepo.FindBucketForUpdate(ctx, partID, stageKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		bucket = &entity.PartInventory{
			ID:       uuid.New().String(),
			PartID:   partID,
			StageKey: stageKey,
			UOM:      uom,
		}
		if err := invRepo.CreateBucket(ctx, bucket); err != nil {
			return err
		}
	}

	bucket.QtyOnHand += qtyDelta
	return invRepo.UpdateBucket(ctx, bucket)
}

// PostStockMoveRequest 库存流水请求
type PostStockMoveRequest struct {
	EntityType string  `json:"entity_type" binding:"required"`
	EntityID   string  `json:"entity_id" binding:"required"`
	QtyDelta   float64 `json:"qty_delta" binding:"required"`
	UOM        string  `json:"uom"`
	Reason     string  `json:"reason"`
	Note       string  `json:"note"`
	SourceType string  `json:"source_type"`
	SourceRef  string  `json:"source_ref"`
}

// PostStockMove 追加库存流水. 流水只审计, 不改写 qty_on_hand.
func (s *InventoryService) PostStockMove(ctx context.Context, req PostStockMoveRequest, createdBy string) (*entity.StockLedgerEntry, error) {
	if req.QtyDelta == 0 {
		return nil, NewValidationError("qty_delta cannot be 0")
	}

	uom := strings.ToLower(strings.TrimSpace(req.UOM))
	if uom == "" {
		uom = "ea"
	}
	reason := strings.ToLower(strings.TrimSpace(req.Reason))
	if reason == "" {
		reason = "adjust"
	}

	entry := &entity.StockLedgerEntry{
		ID:         uuid.New().String(),
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		QtyDelta:   req.QtyDelta,
		UOM:        uom,
		Reason:     reason,
	}
	if n := strings.TrimSpace(req.Note); n != "" {
		entry.Note = &n
	}
	if st := strings.TrimSpace(req.SourceType); st != "" {
		entry.SourceType = &st
	}
	if sr := strings.TrimSpace(req.SourceRef); sr != "" {
		entry.SourceRef = &sr
	}
	if createdBy != "" {
		entry.CreatedBy = &createdBy
	}

	if err := s.repos.Inventory.CreateLedgerEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListBucketsForPart 获取零件阶段库存
func (s *InventoryService) ListBucketsForPart(ctx context.Context, partID string) ([]entity.PartInventory, error) {
	return s.repos.Inventory.ListBucketsForPart(ctx, partID)
}

// ListLedgerForEntity 获取库存流水
func (s *InventoryService) ListLedgerForEntity(ctx context.Context, entityType, entityID string) ([]entity.StockLedgerEntry, error) {
	return s.repos.Inventory.ListLedgerForEntity(ctx, entityType, entityID)
}

// BlankStageObserver 毛坯库存观察者, posts blank-stage deltas when progress
// lands on a raw-material cut op. Good parts add blanks, scrap subtracts.
// Best effort: a BOM line without a catalog part yields a warning, never an
// error.
type BlankStageObserver struct {
	inventory *InventoryService
}

// NewBlankStageObserver 创建毛坯库存观察者
func NewBlankStageObserver(inventory *InventoryService) *BlankStageObserver {
	return &BlankStageObserver{inventory: inventory}
}

// AfterOpProgress implements ProgressObserver.
func (o *BlankStageObserver) AfterOpProgress(ctx context.Context, tx *gorm.DB, op *entity.BuildOperation, qtyDoneDelta, qtyScrapDelta float64) (string, error) {
	if op.ModuleKey != "raw_materials" || !rawMatsBlankOpKeys[op.OpKey] {
		return "", nil
	}

	item := op.BOMItem
	if item == nil && op.BOMItemID != nil {
		found, err := o.inventory.repos.BOM.WithTx(tx).FindItemByID(ctx, *op.BOMItemID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		item = found
	}

	if item == nil || item.PartID == nil {
		return "Progress saved, but Parts Inventory was not updated (BOM item is not linked to a catalog Part).", nil
	}

	uom := item.Unit
	if uom == "" {
		uom = "ea"
	}

	if qtyDoneDelta != 0 {
		if err := o.inventory.ApplyPartInventoryDeltaTx(ctx, tx, *item.PartID, StageBlank, qtyDoneDelta, uom); err != nil {
			return "", err
		}
	}
	if qtyScrapDelta != 0 {
		if err := o.inventory.ApplyPartInventoryDeltaTx(ctx, tx, *item.PartID, StageBlank, -qtyScrapDelta, uom); err != nil {
			return "", err
		}
	}
	return "", nil
}
