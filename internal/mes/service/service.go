package service

import (
	"github.com/ZfId7/Millit-Erp/internal/config"
	"github.com/ZfId7/Millit-Erp/internal/mes/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Auth      *AuthService
	Routing   *RoutingService
	Progress  *ProgressService
	Lifecycle *LifecycleService
	BuildBOM  *BuildBOMService
	WorkOrder *WorkOrderService
	Inventory *InventoryService
	Drawing   *DrawingService
	Admin     *AdminService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO client init failed, file storage disabled", zap.Error(err))
			minioClient = nil
		}
	}

	routing := NewRoutingService(db, repos, logger)
	progress := NewProgressService(db, repos, cfg, logger)
	inventory := NewInventoryService(db, repos, logger)
	buildBOM := NewBuildBOMService(db, repos, routing, logger)

	// 进度写入挂接毛坯库存副作用
	progress.RegisterObserver(NewBlankStageObserver(inventory))

	return &Services{
		Auth:      NewAuthService(repos.User, rdb, cfg),
		Routing:   routing,
		Progress:  progress,
		Lifecycle: NewLifecycleService(db, repos, cfg, logger, progress, routing),
		BuildBOM:  buildBOM,
		WorkOrder: NewWorkOrderService(db, repos, buildBOM, routing, logger),
		Inventory: inventory,
		Drawing:   NewDrawingService(repos, minioClient, cfg.MinIO.Bucket, logger),
		Admin:     NewAdminService(repos, logger),
	}
}
