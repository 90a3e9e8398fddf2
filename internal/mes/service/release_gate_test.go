package service

import (
	"context"
	"testing"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/testutil"
	"gorm.io/gorm"
)

func reloadOp(t *testing.T, db *gorm.DB, id string) *entity.BuildOperation {
	t.Helper()
	var op entity.BuildOperation
	if err := db.Where("id = ?", id).First(&op).Error; err != nil {
		t.Fatalf("reload operation %s: %v", id, err)
	}
	return &op
}

func TestEnforceReleaseStateReleasesLowestSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)

	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusQueue)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	grind := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "bevel_grind", 50, entity.OpStatusQueue)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, build.ID, item.ID)
	})
	if err != nil {
		t.Fatalf("enforce release state: %v", err)
	}

	if !reloadOp(t, env.db, cut.ID).IsReleased {
		t.Error("lowest-sequence op should be released")
	}
	if reloadOp(t, env.db, mill.ID).IsReleased || reloadOp(t, env.db, grind.ID).IsReleased {
		t.Error("only one op per BOM item may hold is_released")
	}
}

func TestEnforceReleaseStateSkipsTerminalOps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)

	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)
	legacy := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "surface_grind", 20, entity.LegacyOpComplete)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, build.ID, item.ID)
	})
	if err != nil {
		t.Fatalf("enforce release state: %v", err)
	}

	if reloadOp(t, env.db, cut.ID).IsReleased || reloadOp(t, env.db, legacy.ID).IsReleased {
		t.Error("terminal ops (legacy spelling included) must never be released")
	}
	if !reloadOp(t, env.db, mill.ID).IsReleased {
		t.Error("first non-terminal op should be released")
	}
}

func TestEnforceReleaseStateAllTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)

	done := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)
	cancelled := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusCancelled)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.EnforceReleaseStateForBOMItemTx(ctx, tx, build.ID, item.ID)
	})
	if err != nil {
		t.Fatalf("enforce release state: %v", err)
	}

	if reloadOp(t, env.db, done.ID).IsReleased || reloadOp(t, env.db, cancelled.ID).IsReleased {
		t.Error("no op should be released when every op is terminal")
	}
}

func TestReleaseNextAdvancesToStrictlyGreaterSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)

	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	grind := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "bevel_grind", 50, entity.OpStatusQueue)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.ReleaseNextForBOMItemTx(ctx, tx, cut)
	})
	if err != nil {
		t.Fatalf("release next: %v", err)
	}

	next := reloadOp(t, env.db, mill.ID)
	if !next.IsReleased {
		t.Error("next op by sequence should be released")
	}
	if next.Status != entity.OpStatusQueue {
		t.Errorf("released op should be queued, got %q", next.Status)
	}
	if reloadOp(t, env.db, grind.ID).IsReleased {
		t.Error("only the immediate successor may be released")
	}
}

func TestReleaseNextPreservesBlockedStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)

	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)
	mill := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusBlocked)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.ReleaseNextForBOMItemTx(ctx, tx, cut)
	})
	if err != nil {
		t.Fatalf("release next: %v", err)
	}

	next := reloadOp(t, env.db, mill.ID)
	if !next.IsReleased {
		t.Error("blocked successor still gets the release flag")
	}
	if next.Status != entity.OpStatusBlocked {
		t.Errorf("blocked status must survive release, got %q", next.Status)
	}
}

func TestReleaseNextSkipsTerminalSuccessors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	item := testutil.SeedBOMItem(t, env.db, build.ID, nil, "Blade", 1)

	cut := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "waterjet_cut", 10, entity.OpStatusCompleted)
	testutil.SeedOperation(t, env.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusCancelled)
	grind := testutil.SeedOperation(t, env.db, build.ID, &item.ID, "bevel_grind", 50, entity.OpStatusQueue)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.ReleaseNextForBOMItemTx(ctx, tx, cut)
	})
	if err != nil {
		t.Fatalf("release next: %v", err)
	}

	if !reloadOp(t, env.db, grind.ID).IsReleased {
		t.Error("cancelled successor should be skipped in favor of the next live op")
	}
}

func TestReleaseNextNoopWithoutBOMItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	build := testutil.SeedBuild(t, env.db, 10)
	op := testutil.SeedOperation(t, env.db, build.ID, nil, "inspect", 10, entity.OpStatusCompleted)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		return env.routing.ReleaseNextForBOMItemTx(ctx, tx, op)
	})
	if err != nil {
		t.Fatalf("release next on build-level op: %v", err)
	}
}
