package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	User      *UserRepository
	Part      *PartRepository
	Routing   *RoutingRepository
	BOM       *BOMRepository
	Build     *BuildRepository
	WorkOrder *WorkOrderRepository
	Operation *OperationRepository
	Progress  *ProgressRepository
	Inventory *InventoryRepository
	Drawing   *PartDrawingRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:      NewUserRepository(db),
		Part:      NewPartRepository(db),
		Routing:   NewRoutingRepository(db),
		BOM:       NewBOMRepository(db),
		Build:     NewBuildRepository(db),
		WorkOrder: NewWorkOrderRepository(db),
		Operation: NewOperationRepository(db),
		Progress:  NewProgressRepository(db),
		Inventory: NewInventoryRepository(db),
		Drawing:   NewPartDrawingRepository(db),
	}
}
