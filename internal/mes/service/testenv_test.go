package service

import (
	"testing"

	"github.com/ZfId7/Millit-Erp/internal/config"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/ZfId7/Millit-Erp/internal/mes/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testEnv wires the service graph against an isolated test schema.
type testEnv struct {
	db        *gorm.DB
	repos     *repository.Repositories
	cfg       *config.Config
	routing   *RoutingService
	progress  *ProgressService
	lifecycle *LifecycleService
	buildBOM  *BuildBOMService
	inventory *InventoryService
	workOrder *WorkOrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := testutil.TestConfig()
	logger := zap.NewNop()

	routing := NewRoutingService(db, repos, logger)
	progress := NewProgressService(db, repos, cfg, logger)
	inventory := NewInventoryService(db, repos, logger)
	progress.RegisterObserver(NewBlankStageObserver(inventory))
	buildBOM := NewBuildBOMService(db, repos, routing, logger)

	return &testEnv{
		db:        db,
		repos:     repos,
		cfg:       cfg,
		routing:   routing,
		progress:  progress,
		lifecycle: NewLifecycleService(db, repos, cfg, logger, progress, routing),
		buildBOM:  buildBOM,
		inventory: inventory,
		workOrder: NewWorkOrderService(db, repos, buildBOM, routing, logger),
	}
}
