package service

import (
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
)

// Claim denial reasons.
const (
	ClaimReasonTerminal                  = "terminal"
	ClaimReasonClaimedByOther            = "claimed_by_other"
	ClaimReasonCannotContributeUnclaimed = "cannot_contribute_unclaimed"
)

// ClaimResult 认领裁决结果
type ClaimResult struct {
	OK         bool
	Role       string // editor/contributor/admin_override
	Changed    bool
	StoleStale bool
	Reason     string
}

// ClaimRequest 认领裁决输入
type ClaimRequest struct {
	UserID        string
	IsAdmin       bool
	Force         bool
	AsContributor bool
	Now           time.Time
	StaleWindow   time.Duration
}

// EvaluateClaim 全局认领策略, mutates the operation's claim fields in memory;
// the caller persists inside its own transaction.
//
// Start calls with AsContributor=false (exclusive editor). Progress calls with
// AsContributor=true: a contributor rides along only when the op allows multi
// user, the claim is stale, or the actor is admin/forced. Contributors never
// take ownership.
func EvaluateClaim(op *entity.BuildOperation, req ClaimRequest) ClaimResult {
	if op.IsTerminal() {
		return ClaimResult{Reason: ClaimReasonTerminal}
	}

	// already owner
	if op.ClaimedBy != nil && *op.ClaimedBy == req.UserID {
		TouchClaim(op, req.Now)
		if op.ClaimedAt == nil {
			op.ClaimedAt = op.ClaimTouchedAt
		}
		return ClaimResult{OK: true, Role: entity.RoleEditor}
	}

	// unclaimed
	if op.ClaimedBy == nil {
		if req.AsContributor && !(op.AllowMultiUser || req.IsAdmin || req.Force) {
			return ClaimResult{Reason: ClaimReasonCannotContributeUnclaimed}
		}
		takeClaim(op, req.UserID, req.Now)
		return ClaimResult{OK: true, Role: entity.RoleEditor, Changed: true}
	}

	// claimed by someone else
	if req.Force || req.IsAdmin {
		takeClaim(op, req.UserID, req.Now)
		return ClaimResult{OK: true, Role: entity.RoleAdminOverride, Changed: true}
	}

	if op.AllowMultiUser {
		TouchClaim(op, req.Now)
		return ClaimResult{OK: true, Role: entity.RoleContributor}
	}

	if IsClaimStale(op, req.Now, req.StaleWindow) {
		takeClaim(op, req.UserID, req.Now)
		return ClaimResult{OK: true, Role: entity.RoleEditor, Changed: true, StoleStale: true}
	}

	return ClaimResult{Reason: ClaimReasonClaimedByOther}
}

func takeClaim(op *entity.BuildOperation, userID string, now time.Time) {
	op.ClaimedBy = &userID
	op.ClaimedAt = &now
	touched := now
	op.ClaimTouchedAt = &touched
}

// TouchClaim 刷新认领活跃时间
func TouchClaim(op *entity.BuildOperation, now time.Time) {
	touched := now
	op.ClaimTouchedAt = &touched
}

// ReleaseClaim 释放认领, 工序进入终态时调用
func ReleaseClaim(op *entity.BuildOperation) {
	op.ClaimedBy = nil
	op.ClaimedAt = nil
	op.ClaimTouchedAt = nil
	op.ClaimNote = nil
}

// IsClaimStale 认领是否超过失效窗口. 从未刷新过的认领视为失效.
func IsClaimStale(op *entity.BuildOperation, now time.Time, window time.Duration) bool {
	if op.ClaimTouchedAt == nil {
		return true
	}
	return now.Sub(*op.ClaimTouchedAt) > window
}
