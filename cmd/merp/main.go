package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ZfId7/Millit-Erp/internal/config"
	"github.com/ZfId7/Millit-Erp/internal/mes/entity"
	"github.com/ZfId7/Millit-Erp/internal/mes/handler"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/ZfId7/Millit-Erp/internal/mes/service"
	"github.com/ZfId7/Millit-Erp/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting millit-erp service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 组装各层
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
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
	); err != nil {
		return err
	}

	// 旧库列补齐, 幂等
	db.Exec("ALTER TABLE build_operations ADD COLUMN IF NOT EXISTS claim_note TEXT")
	db.Exec("ALTER TABLE build_operations ADD COLUMN IF NOT EXISTS allow_multi_user BOOLEAN DEFAULT false")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_build_ops_item_seq ON build_operations(bom_item_id, sequence)")
	db.Exec("UPDATE build_operations SET status = 'completed' WHERE status = 'complete'")

	return nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证 (无需登录)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// 业务接口 (需要登录)
		authed := v1.Group("")
		authed.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 工序生命周期
			ops := authed.Group("/ops")
			{
				ops.GET("/active", h.Operation.MyActive)
				ops.GET("/:id", h.Operation.Get)
				ops.POST("/:id/start", h.Operation.Start)
				ops.POST("/:id/progress", h.Operation.Progress)
				ops.POST("/:id/complete", h.Operation.Complete)
				ops.POST("/:id/cancel", h.Operation.Cancel)
				ops.POST("/:id/block", h.Operation.Block)
				ops.POST("/:id/unblock", h.Operation.Unblock)
				ops.GET("/:id/totals", h.Operation.Totals)
				ops.GET("/:id/ledger", h.Operation.Ledger)
			}

			// 批次BOM
			builds := authed.Group("/builds")
			{
				builds.GET("/:id/ops", h.Operation.ListForBuild)
				builds.GET("/:id/bom", h.BuildBOM.List)
				builds.POST("/:id/bom", h.BuildBOM.Add)
				builds.POST("/:id/ops/regenerate", h.BuildBOM.Regenerate)
			}
			authed.DELETE("/bom-items/:id", h.BuildBOM.Delete)

			// 客户订单
			workOrders := authed.Group("/work-orders")
			{
				workOrders.GET("", h.WorkOrder.List)
				workOrders.POST("", h.WorkOrder.Create)
				workOrders.GET("/:id", h.WorkOrder.Get)
				workOrders.POST("/:id/apply", h.WorkOrder.Apply)
			}

			// 工艺路线
			authed.GET("/routing/presets", h.Routing.Presets)
			parts := authed.Group("/parts")
			{
				parts.GET("/:id/routings", h.Routing.ListForPart)
				parts.POST("/:id/routings", h.Routing.Save)
				parts.GET("/:id/inventory", h.Inventory.Buckets)
				parts.GET("/:id/drawings", h.Drawing.List)
				parts.POST("/:id/drawings", h.Drawing.Upload)
			}

			// 库存
			authed.POST("/stock-moves", h.Inventory.PostMove)
			authed.GET("/stock-ledger", h.Inventory.Ledger)

			// 图纸
			authed.GET("/drawings/:id/url", h.Drawing.DownloadURL)
			authed.DELETE("/drawings/:id", h.Drawing.Delete)

			// 管理端
			admin := authed.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/ops/:id/reopen", h.Operation.Reopen)
				admin.GET("/ops-audit", h.Admin.OpsAudit)
				admin.GET("/ops-audit/export", h.Admin.OpsAuditExport)
			}
		}
	}
}
