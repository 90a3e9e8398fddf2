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

// LifecycleService 工序生命周期服务: start/complete/cancel/block/unblock/reopen.
// 每个动作一个事务, 工序行加锁后裁决.
type LifecycleService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	cfg      *config.Config
	logger   *zap.Logger
	progress *ProgressService
	routing  *RoutingService
}

// NewLifecycleService 创建生命周期服务
func NewLifecycleService(db *gorm.DB, repos *repository.Repositories, cfg *config.Config, logger *zap.Logger, progress *ProgressService, routing *RoutingService) *LifecycleService {
	return &LifecycleService{
		db:       db,
		repos:    repos,
		cfg:      cfg,
		logger:   logger,
		progress: progress,
		routing:  routing,
	}
}

// Get 查询工序, 含明细与认领人
func (s *LifecycleService) Get(ctx context.Context, opID string) (*entity.BuildOperation, error) {
	return s.repos.Operation.FindByID(ctx, opID)
}

// ListForBuild 批次工序列表
func (s *LifecycleService) ListForBuild(ctx context.Context, buildID string) ([]entity.BuildOperation, error) {
	return s.repos.Operation.ListForBuild(ctx, buildID)
}

// MyActiveOps 用户当前持有的未结束工序
func (s *LifecycleService) MyActiveOps(ctx context.Context, userID string) ([]entity.BuildOperation, error) {
	return s.repos.Operation.ListMyActive(ctx, userID)
}

// ActorContext 操作者上下文
type ActorContext struct {
	UserID  string
	IsAdmin bool
	Force   bool
	Note    string
}

func (a ActorContext) trimmedNote() *string {
	note := strings.TrimSpace(a.Note)
	if note == "" {
		return nil
	}
	return &note
}

func (a ActorContext) auditRole() string {
	if a.IsAdmin {
		return entity.RoleAdminOverride
	}
	return entity.RoleEditor
}

// Start 启动工序: status -> in_progress, 独占认领, 审计 start.
func (s *LifecycleService) Start(ctx context.Context, opID string, actor ActorContext) (*entity.BuildOperation, error) {
	if actor.UserID == "" {
		return nil, NewOpProgressError("Missing user. Please log in again.")
	}

	var result *entity.BuildOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)
		op, err := opRepo.FindByIDForUpdate(ctx, opID)
		if err != nil {
			return err
		}

		if op.IsTerminal() {
			return NewOpProgressError("Cannot start a cancelled/completed operation.")
		}

		// set status first, start = intention
		op.Status = entity.OpStatusInProgress

		claimRes := EvaluateClaim(op, ClaimRequest{
			UserID:      actor.UserID,
			IsAdmin:     actor.IsAdmin,
			Force:       actor.Force,
			Now:         time.Now().UTC(),
			StaleWindow: s.cfg.Ops.ClaimStaleWindow(),
		})
		if !claimRes.OK {
			switch claimRes.Reason {
			case ClaimReasonClaimedByOther:
				return NewOpProgressError("This operation is currently claimed by another user.")
			case ClaimReasonTerminal:
				return NewOpProgressError("Cannot start a cancelled/completed operation.")
			}
			return NewOpProgressError("Start blocked by claim rules.")
		}

		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		role := entity.RoleEditor
		if claimRes.Role == entity.RoleAdminOverride {
			role = entity.RoleAdminOverride
		}

		// audit claim takeovers (stale steal, admin override) before the start event
		if claimRes.Changed && (claimRes.StoleStale || role == entity.RoleAdminOverride) {
			var claimNote *string
			if claimRes.StoleStale {
				n := "stale takeover"
				claimNote = &n
			}
			if err := s.progress.AddOpEventTx(ctx, tx, op, &actor.UserID, entity.OpEventClaim, role, claimNote, role == entity.RoleAdminOverride); err != nil {
				return err
			}
		}

		if err := s.progress.AddOpEventTx(ctx, tx, op, &actor.UserID, entity.OpEventStart, role, actor.trimmedNote(), role == entity.RoleAdminOverride); err != nil {
			return err
		}

		result = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operation started",
		zap.String("operation_id", opID),
		zap.String("user_id", actor.UserID),
	)
	return result, nil
}

// canCompleteByRequired 完成就绪规则:
// 完成条件是 qty_done >= qty_required; 报废不抵扣, 超产不阻止.
func (s *LifecycleService) canCompleteByRequired(op *entity.BuildOperation) (bool, string) {
	if op.QtyRequired <= 0 {
		if s.cfg.Ops.AllowUngatedComplete {
			return true, ""
		}
		return false, "qty_required is not set (or is 0)."
	}
	if op.QtyDone < op.QtyRequired {
		remaining := op.QtyRequired - op.QtyDone
		return false, fmt.Sprintf("Not ready: %g required good parts remaining.", remaining)
	}
	return true, ""
}

// Complete 完成工序.
// 数量门禁: 未达标时仅管理员附说明可强制完成, 并记 complete_blocked 审计.
// 进入终态: 释放认领, 清除放行位, 推进同BOM行的下一道工序.
func (s *LifecycleService) Complete(ctx context.Context, opID string, actor ActorContext) (*entity.BuildOperation, error) {
	if actor.UserID == "" {
		return nil, NewOpProgressError("Missing user. Please log in again.")
	}

	var result *entity.BuildOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)
		op, err := opRepo.FindByIDForUpdate(ctx, opID)
		if err != nil {
			return err
		}

		if op.IsTerminal() {
			return NewOpProgressError("Cannot complete: operation is %s.", op.Status)
		}

		ready, reason := s.canCompleteByRequired(op)
		forced := false
		if !ready {
			note := actor.trimmedNote()
			if op.QtyRequired <= 0 && !s.cfg.Ops.AllowUngatedComplete {
				// required-not-set is a setup defect, not a shortfall override
				return NewValidationError("%s", reason)
			}
			if !actor.IsAdmin || note == nil {
				return NewValidationError("%s", reason)
			}
			forced = true
			if err := s.progress.AddOpEventTx(ctx, tx, op, &actor.UserID, entity.OpEventCompleteBlocked, entity.RoleAdminOverride, note, true); err != nil {
				return err
			}
		}

		op.Status = entity.OpStatusCompleted
		op.IsReleased = false
		ReleaseClaim(op)
		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		completeRole := entity.RoleEditor
		if forced {
			completeRole = entity.RoleAdminOverride
		}
		if err := s.progress.AddOpEventTx(ctx, tx, op, &actor.UserID, entity.OpEventComplete, completeRole, actor.trimmedNote(), forced); err != nil {
			return err
		}

		if err := s.routing.ReleaseNextForBOMItemTx(ctx, tx, op); err != nil {
			return err
		}

		result = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operation completed",
		zap.String("operation_id", opID),
		zap.String("user_id", actor.UserID),
	)
	return result, nil
}

// Cancel 取消工序. 终态: 释放认领, 清除放行位. 不推进下一道工序.
func (s *LifecycleService) Cancel(ctx context.Context, opID string, actor ActorContext) (*entity.BuildOperation, error) {
	var result *entity.BuildOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)
		op, err := opRepo.FindByIDForUpdate(ctx, opID)
		if err != nil {
			return err
		}

		if op.IsTerminal() {
			return NewOpProgressError("Cannot cancel: operation is %s.", op.Status)
		}

		now := time.Now().UTC()
		op.Status = entity.OpStatusCancelled
		op.IsReleased = false
		op.CancelledAt = &now
		op.CancelledReason = actor.trimmedNote()
		ReleaseClaim(op)
		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		var userID *string
		if actor.UserID != "" {
			userID = &actor.UserID
		}
		if err := s.progress.AddOpEventTx(ctx, tx, op, userID, entity.OpEventCancel, actor.auditRole(), actor.trimmedNote(), actor.IsAdmin); err != nil {
			return err
		}

		result = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Operation cancelled",
		zap.String("operation_id", opID),
		zap.String("user_id", actor.UserID),
	)
	return result, err
}

// BlockRequest 阻塞请求
type BlockRequest struct {
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes"`
}

// Block 阻塞工序并记录原因.
func (s *LifecycleService) Block(ctx context.Context, opID string, actor ActorContext, req BlockRequest) (*entity.BuildOperation, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, NewValidationError("A blocked reason is required.")
	}

	var result *entity.BuildOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)
		op, err := opRepo.FindByIDForUpdate(ctx, opID)
		if err != nil {
			return err
		}

		if op.IsTerminal() {
			return NewOpProgressError("Cannot block: operation is %s.", op.Status)
		}

		op.Status = entity.OpStatusBlocked
		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		var notes *string
		if n := strings.TrimSpace(req.Notes); n != "" {
			notes = &n
		}
		detail := &entity.OperationDetail{
			ID:            uuid.New().String(),
			OperationID:   op.ID,
			BlockedReason: &reason,
			BlockedNotes:  notes,
		}
		if err := opRepo.UpsertDetail(ctx, detail); err != nil {
			return err
		}

		result = op
		return nil
	})
	return result, err
}

// Unblock 解除阻塞, 回到排队.
func (s *LifecycleService) Unblock(ctx context.Context, opID string, actor ActorContext) (*entity.BuildOperation, error) {
	var result *entity.BuildOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)
		op, err := opRepo.FindByIDForUpdate(ctx, opID)
		if err != nil {
			return err
		}

		if op.Status != entity.OpStatusBlocked {
			return NewOpProgressError("Cannot unblock: operation is %s.", op.Status)
		}

		op.Status = entity.OpStatusQueue
		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		detail := &entity.OperationDetail{
			ID:          uuid.New().String(),
			OperationID: op.ID,
		}
		if err := opRepo.UpsertDetail(ctx, detail); err != nil {
			return err
		}

		result = op
		return nil
	})
	return result, err
}

// Reopen 管理员将阻塞/已取消工序拉回排队, 重算同BOM行放行状态.
// 已完成工序不可重开.
func (s *LifecycleService) Reopen(ctx context.Context, opID string, actor ActorContext) (*entity.BuildOperation, error) {
	if !actor.IsAdmin {
		return nil, NewOpProgressError("Reopen requires admin.")
	}

	var result *entity.BuildOperation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opRepo := s.repos.Operation.WithTx(tx)
		op, err := opRepo.FindByIDForUpdate(ctx, opID)
		if err != nil {
			return err
		}

		status := entity.NormalizeOpStatus(op.Status)
		if status != entity.OpStatusBlocked && status != entity.OpStatusCancelled {
			return NewOpProgressError("Cannot reopen: operation is %s.", op.Status)
		}

		op.Status = entity.OpStatusQueue
		op.CancelledAt = nil
		op.CancelledReason = nil
		if err := opRepo.Update(ctx, op); err != nil {
			return err
		}

		if status == entity.OpStatusBlocked {
			detail := &entity.OperationDetail{
				ID:          uuid.New().String(),
				OperationID: op.ID,
			}
			if err := opRepo.UpsertDetail(ctx, detail); err != nil {
				return err
			}
		}

		if op.BOMItemID != nil {
			if err := s.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, op.BuildID, *op.BOMItemID); err != nil {
				return err
			}
		}

		result = op
		return nil
	})
	return result, err
}
