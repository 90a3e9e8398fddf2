package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/config"
	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressObserver 进度副作用观察者, runs inside the progress transaction.
// A returned warning is surfaced to the caller without failing the write.
type ProgressObserver interface {
	AfterOpProgress(ctx context.Context, tx *gorm.DB, op *entity.BuildOperation, qtyDoneDelta, qtyScrapDelta float64) (warning string, err error)
}

// OpProgressTotals 工序累计数量
type OpProgressTotals struct {
	QtyDone  float64 `json:"qty_done"`
	QtyScrap float64 `json:"qty_scrap"`
}

// ProgressService 工序进度台账服务
type ProgressService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	cfg       *config.Config
	logger    *zap.Logger
	observers []ProgressObserver
}

// NewProgressService 创建进度台账服务
func NewProgressService(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, logger *zap.Logger) *ProgressService {
	return &ProgressService{
		db:     db,
		repos:  repos,
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterObserver 注册进度副作用观察者
func (s *ProgressService) RegisterObserver(observer ProgressObserver) {
	s.observers = append(s.observers, observer)
}

// AddOpEventTx 在事务内追加审计行 (数量增量为0)
func (s *ProgressService) AddOpEventTx(ctx context.Context, tx *gorm.DB, op *entity.BuildOperation, userID *string, eventType, actorRole string, note *string, isOverride bool) error {
	row := &entity.OperationProgress{
		ID:          uuid.New().String(),
		OperationID: op.ID,
		UserID:      userID,
		EventType:   eventType,
		ActorRole:   actorRole,
		EventNote:   note,
		IsOverride:  isOverride,
	}
	return s.repos.Progress.WithTx(tx).Create(ctx, row)
}

// AddProgressRequest 进度提交请求
type AddProgressRequest struct {
	OperationID   string  `json:"-"`
	UserID        string  `json:"-"`
	IsAdmin       bool    `json:"-"`
	Force         bool    `json:"force"`
	QtyDoneDelta  float64 `json:"qty_done_delta"`
	QtyScrapDelta float64 `json:"qty_scrap_delta"`
	Note          string  `json:"note"`
}

// AddProgressResult 进度提交结果
type AddProgressResult struct {
	Operation *entity.BuildOperation `json:"operation"`
	Totals    OpProgressTotals       `json:"totals"`
	Warnings  []string               `json:"warnings,omitempty"`
}

// AddOpProgress 进度写入主入口.
// 终态保护 + 认领门禁 + 台账追加 + 缓存汇总维护, 全部在一个事务内完成.
func (s *ProgressService) AddOpProgress(ctx context.Context, req AddProgressRequest) (*AddProgressResult, error) {
	if req.UserID == "" {
		return nil, NewOpProgressError("Missing user. Please log in again.")
	}

	var result *AddProgressResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)

		op, err := opRepo.FindByIDForUpdate(ctx, req.OperationID)
		if err != nil {
			return err
		}

		if op.IsTerminal() {
			return NewOpProgressError("Cannot add progress to a cancelled/completed operation.")
		}

		// 1) claim gate, progress is a contributor action by default
		claimRes := EvaluateClaim(op, ClaimRequest{
			UserID:        req.UserID,
			IsAdmin:       req.IsAdmin,
			Force:         req.Force,
			AsContributor: true,
			Now:           time.Now().UTC(),
			StaleWindow:   s.cfg.Ops.ClaimStaleWindow(),
		})
		if !claimRes.OK {
			switch claimRes.Reason {
			case ClaimReasonClaimedByOther:
				return NewOpProgressError("This operation is currently claimed by another user.")
			case ClaimReasonCannotContributeUnclaimed:
				return NewOpProgressError("Operation is unclaimed. Start it to claim it before adding progress.")
			case ClaimReasonTerminal:
				return NewOpProgressError("Cannot add progress to a cancelled/completed operation.")
			}
			return NewOpProgressError("Progress blocked by claim rules.")
		}

		// 2) audit claim changes (stale takeover, admin override)
		if claimRes.Changed {
			role := entity.RoleEditor
			if claimRes.Role == entity.RoleAdminOverride {
				role = entity.RoleAdminOverride
			}
			var claimNote *string
			if claimRes.StoleStale {
				n := "stale takeover"
				claimNote = &n
			}
			if err := s.AddOpEventTx(ctx, tx, op, &req.UserID, entity.OpEventClaim, role, claimNote, claimRes.Role == entity.RoleAdminOverride); err != nil {
				return err
			}
		}

		// 3) validate inputs
		note := strings.TrimSpace(req.Note)
		if req.QtyDoneDelta == 0 && req.QtyScrapDelta == 0 && note == "" {
			return NewOpProgressError("Nothing to add. Enter qty done/scrap and/or a note.")
		}
		if req.QtyDoneDelta < 0 || req.QtyScrapDelta < 0 {
			return NewOpProgressError("Deltas must be >= 0.")
		}

		// 4) append ledger row
		var eventNote *string
		if note != "" {
			eventNote = &note
		}
		entry := &entity.OperationProgress{
			ID:            uuid.New().String(),
			OperationID:   op.ID,
			UserID:        &req.UserID,
			QtyDoneDelta:  req.QtyDoneDelta,
			QtyScrapDelta: req.QtyScrapDelta,
			EventType:     entity.OpEventProgress,
			ActorRole:     claimRes.Role,
			EventNote:     eventNote,
			IsOverride:    claimRes.Role == entity.RoleAdminOverride,
		}
		if err := s.repos.Progress.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}

		// 5) maintain cached totals on the operation
		op.QtyDone += req.QtyDoneDelta
		op.QtyScrap += req.QtyScrapDelta
		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		var warnings []string
		for _, observer := range s.observers {
			warning, err := observer.AfterOpProgress(ctx, tx, op, req.QtyDoneDelta, req.QtyScrapDelta)
			if err != nil {
				return err
			}
			if warning != "" {
				warnings = append(warnings, warning)
			}
		}

		result = &AddProgressResult{
			Operation: op,
			Totals:    OpProgressTotals{QtyDone: op.QtyDone, QtyScrap: op.QtyScrap},
			Warnings:  warnings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operation progress added",
		zap.String("operation_id", req.OperationID),
		zap.String("user_id", req.UserID),
		zap.Float64("qty_done_delta", req.QtyDoneDelta),
		zap.Float64("qty_scrap_delta", req.QtyScrapDelta),
	)
	return result, nil
}

// GetOpTotals 读取工序累计数量 (缓存字段)
func (s *ProgressService) GetOpTotals(ctx context.Context, opID string) (*OpProgressTotals, error) {
	op, err := s.repos.Operation.FindByID(ctx, opID)
	if err != nil {
		return nil, err
	}
	return &OpProgressTotals{QtyDone: op.QtyDone, QtyScrap: op.QtyScrap}, nil
}

// ListLedger 获取工序台账
func (s *ProgressService) ListLedger(ctx context.Context, opID string) ([]entity.OperationProgress, error) {
	rows, err := s.repos.Progress.ListForOperation(ctx, opID)
	if err != nil {
		return nil, fmt.Errorf("list operation ledger: %w", err)
	}
	return rows, nil
}
