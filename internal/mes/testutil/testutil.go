package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ZfId7/Millit-Erp/internal/config"
	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_merp"
	JWTSecret  = "millit-erp-jwt-secret-key-2025"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "merp")
	password := getEnv("DB_PASSWORD", "merp123")
	dbname := getEnv("DB_NAME", "millit_erp")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// search_path in the DSN so all pooled connections use the test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&entity.User{},
		&entity.PartType{},
		&entity.Part{},
		&entity.PartInventory{},
		&entity.StockLedgerEntry{},
		&entity.PartDrawing{},
		&entity.RoutingHeader{},
		&entity.RoutingStep{},
		&entity.RoutingTemplate{},
		&entity.BOMHeader{},
		&entity.BOMLine{},
		&entity.Job{},
		&entity.Build{},
		&entity.BOMItem{},
		&entity.WorkOrder{},
		&entity.WorkOrderLine{},
		&entity.BuildOperation{},
		&entity.OperationDetail{},
		&entity.OperationProgress{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// TestConfig returns a config with test-friendly ops policy defaults.
func TestConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:             JWTSecret,
			AccessTokenExpire:  24 * time.Hour,
			RefreshTokenExpire: 168 * time.Hour,
			Issuer:             "millit-erp",
		},
		Ops: config.OpsConfig{
			ClaimStaleSeconds: 7200,
		},
	}
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"uid":  userID,
		"name": name,
		"role": role,
		"iss":  "millit-erp",
		"iat":  now.Unix(),
		"exp":  now.Add(24 * time.Hour).Unix(),
		"jti":  fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// AdminTestToken returns a token for an admin test user
func AdminTestToken() string {
	return GenerateTestToken("test-admin-001", "Test Admin", "admin")
}

// EmployeeTestToken returns a token for a regular shop-floor user
func EmployeeTestToken(userID string) string {
	return GenerateTestToken(userID, "Test Operator", "employee")
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a test user
func SeedTestUser(t *testing.T, db *gorm.DB, id, name, role string) *entity.User {
	t.Helper()
	user := &entity.User{
		ID:           id,
		Username:     "user_" + id,
		PasswordHash: "x",
		Name:         name,
		Role:         role,
		Status:       "active",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedPart creates a catalog part
func SeedPart(t *testing.T, db *gorm.DB, partNumber, name string) *entity.Part {
	t.Helper()
	part := &entity.Part{
		ID:         uuid.New().String(),
		PartNumber: partNumber,
		Name:       name,
		Type:       entity.PartTypeManufactured,
		Unit:       "ea",
	}
	if err := db.Create(part).Error; err != nil {
		t.Fatalf("Failed to seed part: %v", err)
	}
	return part
}

// SeedBuild creates a job + build pair
func SeedBuild(t *testing.T, db *gorm.DB, qtyOrdered float64) *entity.Build {
	t.Helper()
	job := &entity.Job{
		ID:        uuid.New().String(),
		JobNumber: fmt.Sprintf("JOB-%06d", time.Now().UnixNano()%1000000),
		Title:     "Test Job",
		Status:    "active",
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to seed job: %v", err)
	}
	build := &entity.Build{
		ID:         uuid.New().String(),
		JobID:      job.ID,
		Name:       "Test Build",
		Status:     "active",
		QtyOrdered: qtyOrdered,
	}
	if err := db.Create(build).Error; err != nil {
		t.Fatalf("Failed to seed build: %v", err)
	}
	return build
}

// SeedBOMItem creates a snapshot BOM line on a build
func SeedBOMItem(t *testing.T, db *gorm.DB, buildID string, partID *string, name string, qtyPer float64) *entity.BOMItem {
	t.Helper()
	item := &entity.BOMItem{
		ID:      uuid.New().String(),
		BuildID: buildID,
		PartID:  partID,
		LineNo:  1,
		Name:    name,
		QtyPer:  qtyPer,
		Unit:    "ea",
		Source:  "manual",
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to seed bom item: %v", err)
	}
	return item
}

// SeedOperation creates a build operation
func SeedOperation(t *testing.T, db *gorm.DB, buildID string, bomItemID *string, opKey string, sequence int, status string) *entity.BuildOperation {
	t.Helper()
	op := &entity.BuildOperation{
		ID:        uuid.New().String(),
		BuildID:   buildID,
		BOMItemID: bomItemID,
		OpKey:     opKey,
		OpName:    opKey,
		ModuleKey: "manufacturing",
		Sequence:  sequence,
		Status:    status,
	}
	if err := db.Create(op).Error; err != nil {
		t.Fatalf("Failed to seed operation: %v", err)
	}
	return op
}
