package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/testutil"
	"gorm.io/gorm"
)

func listLedgerRows(t *testing.T, db *gorm.DB, opID string) []entity.OperationProgress {
	t.Helper()
	var rows []entity.OperationProgress
	if err := db.Where("operation_id = ?", opID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		t.Fatalf("list ledger rows: %v", err)
	}
	return rows
}

func TestStartClaimsAndAudits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	got, err := env.lifecycle.Start(ctx, op.ID, ActorContext{UserID: alice.ID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got.Status != entity.OpStatusInProgress {
		t.Errorf("expected in_progress, got %q", got.Status)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != alice.ID {
		t.Error("start should claim the op for the actor")
	}

	rows := listLedgerRows(t, env.db, op.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(rows))
	}
	if rows[0].EventType != entity.OpEventStart {
		t.Errorf("expected start event, got %q", rows[0].EventType)
	}
	if rows[0].QtyDoneDelta != 0 || rows[0].QtyScrapDelta != 0 {
		t.Error("lifecycle audit rows carry zero quantity deltas")
	}
}

func TestStartRefusedWhenClaimedByOther(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")
	bob := testutil.SeedTestUser(t, env.db, "u-bob", "Bob", "employee")

	if _, err := env.lifecycle.Start(ctx, op.ID, ActorContext{UserID: alice.ID}); err != nil {
		t.Fatalf("start by alice: %v", err)
	}

	_, err := env.lifecycle.Start(ctx, op.ID, ActorContext{UserID: bob.ID})
	var opErr *OpProgressError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected claim refusal, got %v", err)
	}

	// the op stays with alice and in progress
	got := reloadOp(t, env.db, op.ID)
	if got.ClaimedBy == nil || *got.ClaimedBy != alice.ID {
		t.Error("denied start must not steal the claim")
	}
}

func TestStartAdminTakesOver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")
	boss := testutil.SeedTestUser(t, env.db, "u-boss", "Boss", "admin")

	if _, err := env.lifecycle.Start(ctx, op.ID, ActorContext{UserID: alice.ID}); err != nil {
		t.Fatalf("start by alice: %v", err)
	}
	got, err := env.lifecycle.Start(ctx, op.ID, ActorContext{UserID: boss.ID, IsAdmin: true})
	if err != nil {
		t.Fatalf("admin start: %v", err)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != boss.ID {
		t.Error("admin start should take the claim")
	}

	rows := listLedgerRows(t, env.db, op.ID)
	last := rows[len(rows)-1]
	if last.ActorRole != entity.RoleAdminOverride || !last.IsOverride {
		t.Errorf("admin takeover should audit as admin_override, got role=%q override=%v", last.ActorRole, last.IsOverride)
	}
}

func TestStartStaleTakeoverAudits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")
	bob := testutil.SeedTestUser(t, env.db, "u-bob", "Bob", "employee")

	// alice's claim went stale three hours ago
	staleTouch := time.Now().UTC().Add(-3 * time.Hour)
	op.ClaimedBy = &alice.ID
	op.ClaimedAt = &staleTouch
	op.ClaimTouchedAt = &staleTouch
	if err := env.db.Save(op).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}

	got, err := env.lifecycle.Start(ctx, op.ID, ActorContext{UserID: bob.ID})
	if err != nil {
		t.Fatalf("start over stale claim: %v", err)
	}
	if got.ClaimedBy == nil || *got.ClaimedBy != bob.ID {
		t.Error("stale start should transfer the claim")
	}

	rows := listLedgerRows(t, env.db, op.ID)
	if len(rows) != 2 {
		t.Fatalf("expected claim + start rows, got %d", len(rows))
	}
	var claimRow *entity.OperationProgress
	for i := range rows {
		if rows[i].EventType == entity.OpEventClaim {
			claimRow = &rows[i]
		}
	}
	if claimRow == nil {
		t.Fatalf("stale takeover via start must write a claim audit row, got %+v", rows)
	}
	if claimRow.EventNote == nil || *claimRow.EventNote != "stale takeover" {
		t.Errorf("claim row should note the stale takeover, got %+v", claimRow)
	}
	if claimRow.ActorRole != entity.RoleEditor || claimRow.IsOverride {
		t.Errorf("stale steal audits as plain editor, got %+v", claimRow)
	}
}

func TestCompleteShortfallRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	op.QtyRequired = 10
	op.QtyDone = 4
	if err := env.db.Save(op).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	_, err := env.lifecycle.Complete(ctx, op.ID, ActorContext{UserID: alice.ID})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected shortfall refusal, got %v", err)
	}
	if valErr.Message != "Not ready: 6 required good parts remaining." {
		t.Errorf("unexpected message: %q", valErr.Message)
	}
	if got := reloadOp(t, env.db, op.ID); got.Status != entity.OpStatusInProgress {
		t.Error("refused completion must not change status")
	}
}

func TestCompleteScrapDoesNotCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	op.QtyRequired = 10
	op.QtyDone = 8
	op.QtyScrap = 5
	if err := env.db.Save(op).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	_, err := env.lifecycle.Complete(ctx, op.ID, ActorContext{UserID: alice.ID})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("scrap must not count toward the gate, got %v", err)
	}
}

func TestCompleteReleasesNextOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	cut.QtyRequired = 10
	cut.QtyDone = 12 // overproduction never blocks
	cut.ClaimedBy = &alice.ID
	if err := env.db.Save(cut).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}

	got, err := env.lifecycle.Complete(ctx, cut.ID, ActorContext{UserID: alice.ID})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != entity.OpStatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}
	if got.IsReleased {
		t.Error("terminal op must drop is_released")
	}
	if got.ClaimedBy != nil {
		t.Error("terminal op must release its claim")
	}
	if !reloadOp(t, env.db, mill.ID).IsReleased {
		t.Error("completion should release the next op in sequence")
	}

	rows := listLedgerRows(t, env.db, cut.ID)
	last := rows[len(rows)-1]
	if last.EventType != entity.OpEventComplete || last.ActorRole != entity.RoleEditor || last.IsOverride {
		t.Errorf("normal completion audits as plain editor complete, got %+v", last)
	}
}

func TestCompleteUnsetRequiredIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	boss := testutil.SeedTestUser(t, env.db, "u-boss", "Boss", "admin")

	// even an admin with a note cannot bypass an unset gate
	_, err := env.lifecycle.Complete(ctx, op.ID, ActorContext{UserID: boss.ID, IsAdmin: true, Note: "shipping anyway"})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("unset qty_required is a setup defect, expected ValidationError, got %T: %v", err, err)
	}
}

func TestCompleteUnsetRequiredAllowedWhenUngated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.cfg.Ops.AllowUngatedComplete = true

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	got, err := env.lifecycle.Complete(ctx, op.ID, ActorContext{UserID: alice.ID})
	if err != nil {
		t.Fatalf("ungated complete: %v", err)
	}
	if got.Status != entity.OpStatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}
}

func TestCompleteAdminForceWithNote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	op.QtyRequired = 10
	op.QtyDone = 4
	if err := env.db.Save(op).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}
	boss := testutil.SeedTestUser(t, env.db, "u-boss", "Boss", "admin")

	// admin without a note is still refused
	_, err := env.lifecycle.Complete(ctx, op.ID, ActorContext{UserID: boss.ID, IsAdmin: true})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("admin without note must be refused, got %v", err)
	}

	got, err := env.lifecycle.Complete(ctx, op.ID, ActorContext{UserID: boss.ID, IsAdmin: true, Note: "customer waived remainder"})
	if err != nil {
		t.Fatalf("forced complete: %v", err)
	}
	if got.Status != entity.OpStatusCompleted {
		t.Errorf("expected completed, got %q", got.Status)
	}

	rows := listLedgerRows(t, env.db, op.ID)
	if len(rows) != 2 {
		t.Fatalf("expected complete_blocked + complete rows, got %d", len(rows))
	}
	byEvent := map[string]entity.OperationProgress{}
	for _, row := range rows {
		byEvent[row.EventType] = row
	}
	blocked, ok := byEvent[entity.OpEventCompleteBlocked]
	if !ok || !blocked.IsOverride {
		t.Errorf("expected a complete_blocked override row, got %+v", rows)
	}
	complete, ok := byEvent[entity.OpEventComplete]
	if !ok || complete.ActorRole != entity.RoleAdminOverride {
		t.Errorf("forced completion audits as admin_override, got %+v", rows)
	}
}

func TestCancelDoesNotAdvanceGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusInProgress)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	cut.ClaimedBy = &alice.ID
	cut.IsReleased = true
	if err := env.db.Save(cut).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}

	got, err := env.lifecycle.Cancel(ctx, cut.ID, ActorContext{UserID: alice.ID, Note: "wrong material"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != entity.OpStatusCancelled {
		t.Errorf("expected cancelled, got %q", got.Status)
	}
	if got.CancelledAt == nil || got.CancelledReason == nil {
		t.Error("cancel should record timestamp and reason")
	}
	if got.ClaimedBy != nil || got.IsReleased {
		t.Error("cancel must release the claim and drop is_released")
	}
	if reloadOp(t, env.db, mill.ID).IsReleased {
		t.Error("cancel must not release the next op")
	}
}

func TestCancelTerminalRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)

	_, err := env.lifecycle.Cancel(ctx, op.ID, ActorContext{UserID: "u-alice"})
	var opErr *OpProgressError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected terminal refusal, got %v", err)
	}
}

func TestBlockAndUnblock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	if _, err := env.lifecycle.Block(ctx, op.ID, ActorContext{UserID: alice.ID}, BlockRequest{}); err == nil {
		t.Fatal("block without a reason must be refused")
	}

	got, err := env.lifecycle.Block(ctx, op.ID, ActorContext{UserID: alice.ID}, BlockRequest{Reason: "material", Notes: "waiting on bar stock"})
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if got.Status != entity.OpStatusBlocked {
		t.Errorf("expected blocked, got %q", got.Status)
	}

	var detail entity.OperationDetail
	if err := env.db.Where("operation_id = ?", op.ID).First(&detail).Error; err != nil {
		t.Fatalf("load detail: %v", err)
	}
	if detail.BlockedReason == nil || *detail.BlockedReason != "material" {
		t.Error("blocked reason should be recorded on the detail row")
	}

	got, err = env.lifecycle.Unblock(ctx, op.ID, ActorContext{UserID: alice.ID})
	if err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if got.Status != entity.OpStatusQueue {
		t.Errorf("expected queue after unblock, got %q", got.Status)
	}

	if err := env.db.Where("operation_id = ?", op.ID).First(&detail).Error; err != nil {
		t.Fatalf("reload detail: %v", err)
	}
	if detail.BlockedReason != nil {
		t.Error("unblock should clear the blocked reason")
	}
}

func TestUnblockOnlyFromBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)

	_, err := env.lifecycle.Unblock(ctx, op.ID, ActorContext{UserID: "u-alice"})
	var opErr *OpProgressError
	if !errors.As(err, &opErr) {
		t.Fatalf("unblock from queue must be refused, got %v", err)
	}
}

func TestReopenAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCancelled)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)

	if _, err := env.lifecycle.Reopen(ctx, cut.ID, ActorContext{UserID: "u-alice"}); err == nil {
		t.Fatal("non-admin reopen must be refused")
	}

	got, err := env.lifecycle.Reopen(ctx, cut.ID, ActorContext{UserID: "u-boss", IsAdmin: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.Status != entity.OpStatusQueue {
		t.Errorf("expected queue after reopen, got %q", got.Status)
	}
	if got.CancelledAt != nil || got.CancelledReason != nil {
		t.Error("reopen should clear cancellation fields")
	}

	// release gate recomputed: reopened cut is the lowest live sequence again
	if !reloadOp(t, env.db, cut.ID).IsReleased {
		t.Error("reopened op should hold the release flag")
	}
	if reloadOp(t, env.db, mill.ID).IsReleased {
		t.Error("later op should lose the release flag after reopen")
	}
}

func TestReopenFromBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, env.db, "u-alice", "Alice", "employee")

	if _, err := env.lifecycle.Block(ctx, op.ID, ActorContext{UserID: alice.ID}, BlockRequest{Reason: "material"}); err != nil {
		t.Fatalf("block: %v", err)
	}

	got, err := env.lifecycle.Reopen(ctx, op.ID, ActorContext{UserID: "u-boss", IsAdmin: true})
	if err != nil {
		t.Fatalf("reopen from blocked: %v", err)
	}
	if got.Status != entity.OpStatusQueue {
		t.Errorf("expected queue after reopen, got %q", got.Status)
	}

	var detail entity.OperationDetail
	if err := env.db.Where("operation_id = ?", op.ID).First(&detail).Error; err != nil {
		t.Fatalf("load detail: %v", err)
	}
	if detail.BlockedReason != nil {
		t.Error("reopen from blocked should clear the blocked reason")
	}
}

func TestReopenCompletedRefused(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)

	_, err := env.lifecycle.Reopen(ctx, op.ID, ActorContext{UserID: "u-boss", IsAdmin: true})
	var opErr *OpProgressError
	if !errors.As(err, &opErr) {
		t.Fatalf("completed ops must stay completed, got %v", err)
	}
	if got := reloadOp(t, env.db, op.ID); got.Status != entity.OpStatusCompleted {
		t.Errorf("refused reopen must not change status, got %q", got.Status)
	}

	// the legacy terminal spelling behaves the same
	legacy := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.LegacyOpComplete)
	if _, err := env.lifecycle.Reopen(ctx, legacy.ID, ActorContext{UserID: "u-boss", IsAdmin: true}); !errors.As(err, &opErr) {
		t.Fatalf("legacy complete must also be refused, got %v", err)
	}
}
