package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/ZfId7/Millit-Erp/internal/mes/testutil"
	"github.com/ZfId7/Millit-Erp/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type opTestApp struct {
	db     *gorm.DB
	router *gin.Engine
}

func setupOpApp(t *testing.T) *opTestApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := testutil.TestConfig()
	logger := zap.NewNop()

	routing := service.NewRoutingService(db, repos, logger)
	progress := service.NewProgressService(db, repos, cfg, logger)
	inventory := service.NewInventoryService(db, repos, logger)
	progress.RegisterObserver(service.NewBlankStageObserver(inventory))
	lifecycle := service.NewLifecycleService(db, repos, cfg, logger, progress, routing)

	h := NewOperationHandler(lifecycle, progress)

	router := testutil.SetupRouter()
	authed := testutil.AuthGroup(router, "/api/v1")
	ops := authed.Group("/ops")
	{
		ops.GET("/active", h.MyActive)
		ops.GET("/:id", h.Get)
		ops.POST("/:id/start", h.Start)
		ops.POST("/:id/progress", h.Progress)
		ops.POST("/:id/complete", h.Complete)
		ops.POST("/:id/cancel", h.Cancel)
		ops.POST("/:id/block", h.Block)
		ops.POST("/:id/unblock", h.Unblock)
		ops.GET("/:id/ledger", h.Ledger)
		ops.GET("/:id/totals", h.Totals)
	}
	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.POST("/ops/:id/reopen", h.Reopen)
	}

	return &opTestApp{db: db, router: router}
}

func TestOpEndpointsRequireAuth(t *testing.T) {
	app := setupOpApp(t)

	w := testutil.DoRequest(app.router, http.MethodGet, "/api/v1/ops/active", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}

	w = testutil.DoRequest(app.router, http.MethodGet, "/api/v1/ops/active", nil, "not-a-token")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestOpStartAndProgressFlow(t *testing.T) {
	app := setupOpApp(t)

	build := testutil.SeedBuild(t, app.db, 10)
	item := testutil.SeedBOMItem(t, app.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, app.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, app.db, "u-alice", "Alice", "employee")
	token := testutil.EmployeeTestToken(alice.ID)

	w := testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/start", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 0 {
		t.Errorf("expected code 0, got %v", resp["code"])
	}
	data := resp["data"].(map[string]interface{})
	if data["status"] != entity.OpStatusInProgress {
		t.Errorf("expected in_progress, got %v", data["status"])
	}
	if data["claimed_by"] != alice.ID {
		t.Errorf("expected claim by %s, got %v", alice.ID, data["claimed_by"])
	}

	w = testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/progress",
		map[string]interface{}{"qty_done_delta": 4, "qty_scrap_delta": 1, "note": "first batch"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("progress: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	totals := resp["data"].(map[string]interface{})["totals"].(map[string]interface{})
	if totals["qty_done"].(float64) != 4 || totals["qty_scrap"].(float64) != 1 {
		t.Errorf("unexpected totals: %v", totals)
	}

	// my active list shows the claimed op
	w = testutil.DoRequest(app.router, http.MethodGet, "/api/v1/ops/active", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("active: expected 200, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("expected 1 active op, got %d", len(items))
	}

	// ledger holds start + progress rows
	w = testutil.DoRequest(app.router, http.MethodGet, "/api/v1/ops/"+op.ID+"/ledger", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("ledger: expected 200, got %d", w.Code)
	}
	resp = testutil.ParseResponse(w)
	rows := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(rows) != 2 {
		t.Errorf("expected 2 ledger rows, got %d", len(rows))
	}
}

func TestOpCompleteShortfallReturns400(t *testing.T) {
	app := setupOpApp(t)

	build := testutil.SeedBuild(t, app.db, 10)
	item := testutil.SeedBOMItem(t, app.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, app.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusInProgress)
	if err := app.db.Model(op).Updates(map[string]interface{}{"qty_required": 10, "qty_done": 4}).Error; err != nil {
		t.Fatalf("update op: %v", err)
	}
	alice := testutil.SeedTestUser(t, app.db, "u-alice", "Alice", "employee")
	token := testutil.EmployeeTestToken(alice.ID)

	w := testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/complete", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40000 {
		t.Errorf("expected code 40000, got %v", resp["code"])
	}
	if resp["message"] != "Not ready: 6 required good parts remaining." {
		t.Errorf("unexpected message: %v", resp["message"])
	}
}

func TestOpProgressClaimConflictReturns400(t *testing.T) {
	app := setupOpApp(t)

	build := testutil.SeedBuild(t, app.db, 10)
	item := testutil.SeedBOMItem(t, app.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, app.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, app.db, "u-alice", "Alice", "employee")
	bob := testutil.SeedTestUser(t, app.db, "u-bob", "Bob", "employee")

	w := testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/start", nil, testutil.EmployeeTestToken(alice.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d", w.Code)
	}

	w = testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/progress",
		map[string]interface{}{"qty_done_delta": 1}, testutil.EmployeeTestToken(bob.ID))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for claim conflict, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOpNotFoundReturns404(t *testing.T) {
	app := setupOpApp(t)
	alice := testutil.SeedTestUser(t, app.db, "u-alice", "Alice", "employee")

	w := testutil.DoRequest(app.router, http.MethodGet, "/api/v1/ops/no-such-op", nil, testutil.EmployeeTestToken(alice.ID))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["code"].(float64) != 40400 {
		t.Errorf("expected code 40400, got %v", resp["code"])
	}
}

func TestOpReopenRequiresAdmin(t *testing.T) {
	app := setupOpApp(t)

	build := testutil.SeedBuild(t, app.db, 10)
	item := testutil.SeedBOMItem(t, app.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, app.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusCancelled)
	alice := testutil.SeedTestUser(t, app.db, "u-alice", "Alice", "employee")
	boss := testutil.SeedTestUser(t, app.db, "u-boss", "Boss", "admin")

	path := fmt.Sprintf("/api/v1/admin/ops/%s/reopen", op.ID)

	w := testutil.DoRequest(app.router, http.MethodPost, path, nil, testutil.EmployeeTestToken(alice.ID))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}

	w = testutil.DoRequest(app.router, http.MethodPost, path, nil, testutil.GenerateTestToken(boss.ID, boss.Name, "admin"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin reopen, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["status"] != entity.OpStatusQueue {
		t.Errorf("expected queue after reopen, got %v", data["status"])
	}
}

func TestOpBlockValidatesReason(t *testing.T) {
	app := setupOpApp(t)

	build := testutil.SeedBuild(t, app.db, 10)
	item := testutil.SeedBOMItem(t, app.db, build.ID, nil, "Blade", 1)
	op := testutil.SeedOperation(t, app.db, build.ID, &item.ID, "cnc_profile", 30, entity.OpStatusQueue)
	alice := testutil.SeedTestUser(t, app.db, "u-alice", "Alice", "employee")
	token := testutil.EmployeeTestToken(alice.ID)

	w := testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/block",
		map[string]interface{}{}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without reason, got %d", w.Code)
	}

	w = testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/block",
		map[string]interface{}{"reason": "material"}, token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(app.router, http.MethodPost, "/api/v1/ops/"+op.ID+"/unblock", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("unblock: expected 200, got %d", w.Code)
	}
}
